package service

import (
	"context"

	"motor_gateway/internal/models"
	"motor_gateway/internal/repository"
)

type DeviceService struct {
	deviceRepo repository.DeviceRepo
}

func NewDeviceService(deviceRepo repository.DeviceRepo) *DeviceService {
	return &DeviceService{deviceRepo: deviceRepo}
}

// List returns every device ever seen, with its last known presence. It never
// returns nil.
func (s *DeviceService) List(ctx context.Context) ([]models.DeviceRecord, error) {
	out, err := s.deviceRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.DeviceRecord{}
	}
	return out, nil
}

// ResetPresence marks all devices offline; called at startup.
func (s *DeviceService) ResetPresence(ctx context.Context) (int64, error) {
	return s.deviceRepo.ResetPresence(ctx)
}
