// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/08shiro80/komga-enhanced-sub000/pkg/query"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, query.CSV(""))
	assert.Equal(t, []string{"en"}, query.CSV("en"))
	assert.Equal(t, []string{"en", "ja"}, query.CSV(" en , ja "))
	assert.Equal(t, []string{"en"}, query.CSV("en,,  ,"))
}

func TestLangs(t *testing.T) {
	assert.Nil(t, query.Langs(""))
	assert.Equal(t, []string{"en"}, query.Langs("en-US"))
	assert.Equal(t, []string{"en", "ja"}, query.Langs("en, ja"))
	// Duplicates after base-subtag normalization collapse.
	assert.Equal(t, []string{"pt"}, query.Langs("pt-BR,pt-PT"))
}
