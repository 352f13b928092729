package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("order not found with id: %d", 7)))
	assert.Equal(t, KindForbidden, KindOf(Forbidden("not your cart")))
	assert.Equal(t, KindBadRequest, KindOf(BadRequest("cart is empty")))
	assert.Equal(t, KindConflict, KindOf(Conflict("insufficient stock")))
	assert.Equal(t, KindPaymentFailed, KindOf(PaymentFailed("payment processing failed", errors.New("boom"))))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("checkout: %w", NotFound("cart not found with id: %d", 10))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestErrorMessage(t *testing.T) {
	err := PaymentFailed("payment processing failed", errors.New("gateway timeout"))
	assert.Equal(t, "payment processing failed: gateway timeout", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "gateway timeout")

	assert.Equal(t, "cart is empty", BadRequest("cart is empty").Error())
}
