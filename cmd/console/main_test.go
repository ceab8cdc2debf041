package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-console/internal/app"
	_ "github.com/odyssey-erp/odyssey-console/internal/testing/guard"
)

func TestMainReturnsInTestMode(t *testing.T) {
	assert.True(t, app.InTestMode())
	main()
}
