package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckSyntax_BalancedIsValid(t *testing.T) {
	files := Files{Contents: map[string]string{
		"a.go": `func a() { return []int{1, 2, 3} }`,
	}}
	results, ok := CheckSyntax(files)
	assert.True(t, ok)
	assert.True(t, results["a.go"].Valid)
}

func TestCheckSyntax_UnbalancedBraceIsInvalid(t *testing.T) {
	files := Files{Contents: map[string]string{
		"a.go": `func a() { return 1`,
	}}
	results, ok := CheckSyntax(files)
	assert.False(t, ok)
	assert.False(t, results["a.go"].Valid)
	assert.NotEmpty(t, results["a.go"].Error)
}

func TestCheckSyntax_StringsDontConfuseBraceCounting(t *testing.T) {
	files := Files{Contents: map[string]string{
		"a.go": `msg := "unbalanced { brace inside a string"`,
	}}
	_, ok := CheckSyntax(files)
	assert.True(t, ok)
}

func TestCheckSyntax_UnterminatedStringIsInvalid(t *testing.T) {
	files := Files{Contents: map[string]string{
		"a.go": `msg := "never closed`,
	}}
	_, ok := CheckSyntax(files)
	assert.False(t, ok)
}

func TestCheckSyntax_OverallFalseIfAnyFileFails(t *testing.T) {
	files := Files{Contents: map[string]string{
		"good.go": `func ok() {}`,
		"bad.go":  `func bad( {`,
	}}
	_, ok := CheckSyntax(files)
	assert.False(t, ok)
}
