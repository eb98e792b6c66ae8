package esmutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhToKwh(t *testing.T) {
	assert.Equal(t, 7640.93, WhToKwh(7640930))
	assert.Equal(t, 0.0, WhToKwh(0))
}
