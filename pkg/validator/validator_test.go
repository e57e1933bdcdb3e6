package validator

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-flow/pkg/errors"
)

type line struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

type order struct {
	Lines []line `json:"lines" validate:"required,min=1,dive"`
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(order{Lines: []line{{Name: "Paracetamol", Quantity: 10}}}))
}

func TestStructReportsFields(t *testing.T) {
	err := Struct(order{Lines: []line{{Name: "", Quantity: -1}}})
	require.Error(t, err)

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindValidation, appErr.Kind)

	fields, ok := appErr.Details.([]FieldError)
	require.True(t, ok)
	require.Len(t, fields, 2)
	assert.Equal(t, "order.lines[0].name", fields[0].Field)
	assert.Equal(t, "is required", fields[0].Message)
	assert.Equal(t, "order.lines[0].quantity", fields[1].Field)
}

func TestStructEmptyList(t *testing.T) {
	err := Struct(order{})
	assert.True(t, errors.Is(err, errors.KindValidation))
}

func TestTranslateForeignError(t *testing.T) {
	err := Translate(stderrors.New("unexpected EOF"))

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Message, "unexpected EOF")
	assert.Nil(t, appErr.Details)
}

func TestTranslateNil(t *testing.T) {
	assert.NoError(t, Translate(nil))
}
