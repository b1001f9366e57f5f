package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeKinds(t *testing.T) {
	cases := map[Code]Kind{
		CodeInvalidToken:         KindAuth,
		CodeAccessDenied:         KindAuth,
		CodeUserNotFound:         KindValidation,
		CodeInsufficientReadings: KindValidation,
		CodeInvalidTimeRange:     KindValidation,
		CodeSystemError:          KindSystem,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.Kind(), "code %d", code)
	}
}

func TestDefaultMessages(t *testing.T) {
	assert.Equal(t, "无效的Token", CodeInvalidToken.Message())
	assert.Equal(t, "用户不存在", CodeUserNotFound.Message())
	assert.Equal(t, "读数不足", CodeInsufficientReadings.Message())
	assert.Equal(t, "无效的读数值", CodeInvalidReadingValue.Message())
	assert.Equal(t, "无效的时间范围", CodeInvalidTimeRange.Message())
	assert.Equal(t, CodeSystemError.Message(), Code(12345).Message())
}

func TestFromKeepsCodedErrors(t *testing.T) {
	base := Newf(CodeInvalidMeterID, "电表ID不存在: %d", 7)
	wrapped := fmt.Errorf("load meter: %w", base)

	got := From(wrapped)
	assert.Same(t, base, got)
	assert.Equal(t, "电表ID不存在: 7", got.Msg)
	assert.True(t, HasCode(wrapped, CodeInvalidMeterID))
}

func TestFromHidesUnexpectedErrors(t *testing.T) {
	cause := errors.New("disk on fire")
	got := From(cause)

	assert.Equal(t, CodeSystemError, got.Code)
	assert.Equal(t, CodeSystemError.Message(), got.Msg)
	assert.ErrorIs(t, got, cause)
	assert.Nil(t, From(nil))
}

func TestAuthenticationKindOverridesCode(t *testing.T) {
	unknown := NewAuth(CodeUserNotFound)
	assert.Equal(t, KindAuth, unknown.Kind())
	assert.Equal(t, CodeUserNotFound, unknown.Code)
	assert.Equal(t, "用户不存在", unknown.Msg)

	wrapped := fmt.Errorf("resolve subject: %w", unknown)
	assert.Equal(t, KindAuth, From(wrapped).Kind())

	assert.Equal(t, KindValidation, New(CodeUserNotFound).Kind())
	assert.Equal(t, KindValidation, Newf(CodeUserNotFound, "用户不存在: %d", 3).Kind())
}
