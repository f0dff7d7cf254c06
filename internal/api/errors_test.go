package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"velovis/internal/permission"
	"velovis/internal/service"

	"github.com/gin-gonic/gin"
)

func TestErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		status         int
		code           string
		message        string
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{
			name:           "BadRequest",
			status:         http.StatusBadRequest,
			code:           ErrCodeInvalidRequest,
			message:        "无效的请求",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   ErrCodeInvalidRequest,
			expectedMsg:    "无效的请求",
		},
		{
			name:           "NotFound",
			status:         http.StatusNotFound,
			code:           ErrCodeNotFound,
			message:        "角色不存在",
			expectedStatus: http.StatusNotFound,
			expectedCode:   ErrCodeNotFound,
			expectedMsg:    "角色不存在",
		},
		{
			name:           "InternalError",
			status:         http.StatusInternalServerError,
			code:           ErrCodeInternalError,
			message:        "服务器内部错误",
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   ErrCodeInternalError,
			expectedMsg:    "服务器内部错误",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			ErrorResponse(c, tt.status, tt.code, tt.message)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var response APIError
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}

			if response.Code != tt.expectedCode {
				t.Errorf("expected code %s, got %s", tt.expectedCode, response.Code)
			}

			if response.Message != tt.expectedMsg {
				t.Errorf("expected message %s, got %s", tt.expectedMsg, response.Message)
			}
		})
	}
}

func TestErrorResponseWithDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	details := map[string]string{"field": "email"}
	ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeMissingField, "缺少必填字段", details)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var response APIError
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if response.Code != ErrCodeMissingField {
		t.Errorf("expected code %s, got %s", ErrCodeMissingField, response.Code)
	}

	if response.Details == nil {
		t.Error("expected details to be set")
	}
}

func TestShortcutFunctions(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("BadRequest", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		BadRequest(c, ErrCodeInvalidRequest, "测试错误")

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		Unauthorized(c, "需要登录")

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})

	t.Run("Forbidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		Forbidden(c, "没有权限")

		if w.Code != http.StatusForbidden {
			t.Errorf("expected status %d, got %d", http.StatusForbidden, w.Code)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		NotFound(c, ErrCodeNotFound, "资源不存在")

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})

	t.Run("InternalError", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		InternalError(c, "服务器错误")

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})

	t.Run("ServiceUnavailable", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		ServiceUnavailable(c, "服务不可用")

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
		}
	})

	t.Run("MissingField", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		MissingField(c, "email")

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var response APIError
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}

		if response.Code != ErrCodeMissingField {
			t.Errorf("expected code %s, got %s", ErrCodeMissingField, response.Code)
		}
	})

	t.Run("InvalidPayload", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		InvalidPayload(c)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestServiceErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"unauthorized", service.ErrUnauthorized, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"wrapped forbidden", fmt.Errorf("tx: %w", service.ErrForbidden), http.StatusForbidden, ErrCodeForbidden},
		{"not found", service.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"conflict", service.ErrConflict, http.StatusConflict, ErrCodeConflict},
		{"invalid input", service.ErrInvalidInput, http.StatusBadRequest, ErrCodeInvalidRequest},
		{"rate limited", service.ErrRateLimited, http.StatusTooManyRequests, ErrCodeRateLimited},
		{"guard", permission.ErrInsufficientPermission, http.StatusForbidden, ErrCodeInsufficientPermission},
		{"internal", errors.New("database is locked"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			ServiceError(c, tt.err, "test")

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			var response APIError
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if response.Code != tt.expectedCode {
				t.Errorf("expected code %s, got %s", tt.expectedCode, response.Code)
			}
			if tt.expectedStatus == http.StatusInternalServerError && response.Message != "internal server error" {
				t.Errorf("internal detail leaked: %q", response.Message)
			}
		})
	}
}

func TestServiceErrorCarriesDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ServiceError(c, &service.Error{
		Kind:    service.KindInvalidInput,
		Message: "unknown permission keys",
		Details: map[string][]string{"invalid_keys": {"products:fly"}},
	}, "test")

	var response struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(response.Details["invalid_keys"]) != 1 || response.Details["invalid_keys"][0] != "products:fly" {
		t.Fatalf("expected details in response, got %+v", response)
	}
}
