package workflow

import "testing"

func TestRender(t *testing.T) {
	ctx := map[string]any{
		"name":  "Maria",
		"price": "R$ 150,00",
		"count": 3,
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"simple", "Olá, {{name}}!", "Olá, Maria!"},
		{"spaces inside braces", "Valor: {{ price }}", "Valor: R$ 150,00"},
		{"non-string value", "{{count}} sessões", "3 sessões"},
		{"unknown key left intact", "Oi {{paciente}}", "Oi {{paciente}}"},
		{"no placeholders", "Bom dia", "Bom dia"},
		{"multiple", "{{name}}: {{price}}", "Maria: R$ 150,00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, ctx); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}
