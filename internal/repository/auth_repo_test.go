package repository

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"motor_gateway/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestOperatorRepo_Create(t *testing.T) {
	cases := []struct {
		name    string
		expect  func(m sqlmock.Sqlmock)
		wantID  int
		wantErr string
		taken   bool
	}{
		{
			name: "inserted",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertUserSQL)).WithArgs("op", "hash").
					WillReturnResult(sqlmock.NewResult(42, 1))
			},
			wantID: 42,
		},
		{
			name: "duplicate username",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertUserSQL)).WithArgs("op", "hash").
					WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"))
			},
			wantErr: "username already taken",
			taken:   true,
		},
		{
			name: "exec error",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertUserSQL)).WithArgs("op", "hash").
					WillReturnError(errors.New("disk I/O error"))
			},
			wantErr: "insert operator",
		},
		{
			name: "no insert id",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertUserSQL)).WithArgs("op", "hash").
					WillReturnResult(sqlmock.NewErrorResult(errors.New("no last id")))
			},
			wantErr: "id: no last id",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tc.expect(mock)

			id, err := NewOperatorRepo(db).Create(ctx(t), "op", "hash")
			if tc.wantErr == "" {
				if err != nil || id != tc.wantID {
					t.Fatalf("Create = (%d, %v), want (%d, nil)", id, err, tc.wantID)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
			}
			if errors.Is(err, ErrUsernameTaken) != tc.taken {
				t.Fatalf("errors.Is(ErrUsernameTaken) = %v, want %v", !tc.taken, tc.taken)
			}
		})
	}
}

func TestOperatorRepo_GetByUsername(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).WithArgs("op").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}).AddRow(7, "op", "hash"))

		u, err := NewOperatorRepo(db).GetByUsername(ctx(t), "op")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := models.User{ID: 7, Username: "op", PasswordHash: "hash"}
		if u == nil || *u != want {
			t.Fatalf("user = %+v, want %+v", u, want)
		}
	})

	t.Run("unknown username", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}))

		u, err := NewOperatorRepo(db).GetByUsername(ctx(t), "ghost")
		if err != nil || u != nil {
			t.Fatalf("GetByUsername = (%+v, %v), want (nil, nil)", u, err)
		}
	})

	t.Run("query error", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).WithArgs("op").
			WillReturnError(errors.New("database is locked"))

		u, err := NewOperatorRepo(db).GetByUsername(ctx(t), "op")
		if err == nil || !strings.Contains(err.Error(), "select operator") || u != nil {
			t.Fatalf("GetByUsername = (%+v, %v), want wrapped error", u, err)
		}
	})
}
