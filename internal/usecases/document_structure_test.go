package usecases

import (
	"strings"
	"testing"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"ДОГОВОР АРЕНДЫ КВАРТИРЫ", true},
		{"Договор ДОГОВОР", true},
		{"Настоящий АКТ составлен", true},
		{"КОНТРАКТ", true},
		{"контрактная АКТуальность", false},
		{"1. Предмет договора", true},
		{"1.2 Стороны", true},
		{"1.2. Стороны", true},
		{"3) Порядок расчетов", true},
		{"IV. Ответственность сторон", true},
		{"Статья 5", true},
		{"Статьями закона установлено", false},
		{"Приложение № 1", true},
		{"г. Москва", false},
		{"Арендатор обязуется вносить плату.", false},
		{"12345", false},
		{"", false},
		{strings.Repeat("Я", 160), false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeading(tt.line))
		})
	}
}

func TestStructureDocument(t *testing.T) {
	md := "# Договор аренды\n\n" +
		"ДОГОВОР АРЕНДЫ\nг. Москва\n\n" +
		"1. Предмет договора\n\n" +
		"Арендодатель передает **квартиру** в `пользование`.\n\n" +
		"- первый пункт\n- второй пункт\n\n" +
		"---\n\n" +
		"> Статья 606 ГК РФ\n"

	blocks := StructureDocument(md)

	want := []entities.DocBlock{
		{Text: "Договор аренды", Heading: true, Centered: true},
		{Text: "ДОГОВОР АРЕНДЫ", Heading: true, Centered: true},
		{Text: "г. Москва"},
		{Text: "1. Предмет договора", Heading: true, Centered: true},
		{Text: "Арендодатель передает квартиру в пользование."},
		{Text: "• первый пункт"},
		{Text: "• второй пункт"},
		{Text: "Статья 606 ГК РФ", Heading: true, Centered: true},
	}
	assert.Equal(t, want, blocks)
}

func TestStructureDocument_LongHeadingNotCentered(t *testing.T) {
	line := "1. " + strings.Repeat("условие ", 12)
	blocks := StructureDocument(line)

	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Heading)
	assert.False(t, blocks[0].Centered)
}

func TestStructureDocument_OrderedListKeepsStart(t *testing.T) {
	blocks := StructureDocument("3. Цена\n4. Срок\n")

	require.Len(t, blocks, 2)
	assert.Equal(t, "3. Цена", blocks[0].Text)
	assert.Equal(t, "4. Срок", blocks[1].Text)
}

func TestPlainBlocks(t *testing.T) {
	blocks := PlainBlocks("Первый абзац\nпродолжение\n\n  \n\nВторой\r\n\r\nТретий\n")

	assert.Equal(t, []entities.DocBlock{
		{Text: "Первый абзац\nпродолжение"},
		{Text: "Второй"},
		{Text: "Третий"},
	}, blocks)
	assert.Empty(t, PlainBlocks(" \n\n "))
}
