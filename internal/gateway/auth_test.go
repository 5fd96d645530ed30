package gateway

import (
	"context"
	"testing"

	"motor_gateway/internal/models"
	"motor_gateway/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// operatorRepo holds a single operator "op" with password "pw".
type operatorRepo struct{ hash string }

func (operatorRepo) Create(context.Context, string, string) (int, error) { return 3, nil }

func (r operatorRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return &models.User{ID: 3, Username: username, PasswordHash: r.hash}, nil
}

// Both token kinds signed with one key, as configs/config.yml ships.
func TestGateway_SharedKeyTokensStayInTheirRole(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := service.NewAuthService(operatorRepo{hash: string(hash)}, service.AuthConfig{SigningKey: "change-me"})

	session, err := auth.GenerateToken(context.Background(), "op", "pw")
	require.NoError(t, err)
	deviceToken, err := auth.GenerateDeviceToken("esp32_a")
	require.NoError(t, err)

	h := startGatewayWith(t, Config{}, auth)

	c := h.dial(t, "/ws/device?device_id=esp32_a&token="+session)
	assert.Equal(t, CloseInvalidToken, c.closeCode(t), "session token on the device path")

	c = h.dial(t, "/ws/dashboard?token="+deviceToken)
	assert.Equal(t, CloseInvalidToken, c.closeCode(t), "device token on the dashboard path")

	c = h.dial(t, "/ws/device?device_id=esp32_b&token="+deviceToken)
	assert.Equal(t, CloseInvalidToken, c.closeCode(t), "device token for another id")

	assert.Equal(t, models.Stats{}, h.stats(t))

	dash := h.dial(t, "/ws/dashboard?token="+session)
	require.Equal(t, "connection", dash.nextJSON(t)["type"])
	h.dial(t, "/ws/device?device_id=esp32_a&token="+deviceToken)
	assert.Equal(t, "Device esp32_a connected", dash.nextJSON(t)["message"])
	assert.Equal(t, models.Stats{DeviceCount: 1, DashboardCount: 1}, h.stats(t))
}
