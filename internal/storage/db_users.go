package storage

import (
	"errors"
	"fmt"

	"omilia/backend/internal/models"

	"gorm.io/gorm"
)

// CreateUser inserts a new account.
func (s *Service) CreateUser(user *models.User) error {
	return s.DB.Create(user).Error
}

// UserByID loads an account by primary key.
func (s *Service) UserByID(id uint) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserByLogin loads an account by its login credential.
func (s *Service) UserByLogin(login string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("login = ?", login).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("login %s: %w", login, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserByTelegramID loads an account by its linked Telegram identity.
func (s *Service) UserByTelegramID(telegramID string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("telegram_id %s: %w", telegramID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser saves changed account fields.
func (s *Service) UpdateUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// UsernameTaken reports whether a display name is already in use.
func (s *Service) UsernameTaken(username string) (bool, error) {
	var count int64
	if err := s.DB.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
