package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableRows(t *testing.T) {
	table := NewTable(strings.Join([]string{
		"aaa   bbb   ccc",
		"ddd   eee   fff",
		"ggg   hhh   iii",
	}, "\n"), 3)
	assert.Equal(t, [][]string{
		{"aaa", "bbb", "ccc"},
		{"ddd", "eee", "fff"},
		{"ggg", "hhh", "iii"},
	}, table.Rows())
}

func TestTableDropsIncompleteRows(t *testing.T) {
	table := NewTable(strings.Join([]string{
		"aaa   bbb   ccc",
		"ddd         fff",
		"ggg   hhh   iii",
	}, "\n"), 3)
	assert.Equal(t, [][]string{
		{"aaa", "bbb", "ccc"},
		{"ggg", "hhh", "iii"},
	}, table.Rows())
}

func TestTableValuesKeepPartialRows(t *testing.T) {
	table := NewTable(strings.Join([]string{
		"aaa   bbb",
		"ccc",
		"      ddd",
	}, "\n"), 2)
	assert.Equal(t, []string{"aaa", "bbb", "ccc", "ddd"}, table.Values())
}

func TestTableHandlesGreekAttendanceColumns(t *testing.T) {
	table := NewTable(strings.Join([]string{
		"Αβραάμ Αντωνίου     Γιώργος Περδίκης",
		"Ζαχαρίας Κουλίας    Νίκος Τορναρίτης",
	}, "\n"), 2)
	assert.Equal(t, [][]string{
		{"Αβραάμ Αντωνίου", "Γιώργος Περδίκης"},
		{"Ζαχαρίας Κουλίας", "Νίκος Τορναρίτης"},
	}, table.Rows())
}
