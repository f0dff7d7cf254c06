package auth

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 10
	MinPasswordLength = 8
)

// ErrWeakPassword is returned by CheckPasswordPolicy.
var ErrWeakPassword = errors.New("password must be at least 8 characters and contain an upper-case letter, a lower-case letter and a digit")

// ErrPasswordTooLong is returned for passwords bcrypt cannot hash (over 72 bytes).
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// HashPassword 对明文密码进行哈希处理
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultBcryptCost)
}

// HashPasswordWithCost 使用指定 cost 进行哈希，cost 越界时回退到默认值
func HashPasswordWithCost(password string, cost int) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password must not be empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword 验证密码是否与存储的哈希值匹配
func VerifyPassword(hash, candidate string) error {
	if strings.TrimSpace(hash) == "" {
		return errors.New("stored password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
}

// CheckPasswordPolicy 校验新密码强度：至少 8 位，包含大小写字母和数字
func CheckPasswordPolicy(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}
