package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestSectorClassifier(t *testing.T) {
	c := NewSectorClassifier([]Sector{
		{Name: "Salud", Keywords: []string{"medicamento", "hospital"}},
		{Name: "Construcción", Keywords: []string{"construcción", "asfalto", "obra"}},
		{Name: "Tecnología", Keywords: []string{"computo", "software"}},
	}, "Otros")

	tests := []struct {
		name     string
		texts    []string
		expected string
	}{
		{"accent-insensitive keyword", []string{"CONSTRUCCION de puente"}, "Construcción"},
		{"keyword in second text", []string{"Compra", "licencias de Software"}, "Tecnología"},
		{"priority order breaks ties", []string{"Software para hospital"}, "Salud"},
		{"fallback", []string{"Servicios de limpieza"}, "Otros"},
		{"keyword as stem", []string{"Obras viales"}, "Construcción"},
		{"keyword after punctuation", []string{"Contratación (obra menor)"}, "Construcción"},
		{"keyword inside word", []string{"Servicio de cobranza"}, "Otros"},
		{"keyword at word end", []string{"Curso de maniobra"}, "Otros"},
		{"empty", nil, "Otros"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.expected, c.Classify(tt.texts...))
		})
	}

	check.Equal(t, []string{"Salud", "Construcción", "Tecnología", "Otros"}, c.Names())
}
