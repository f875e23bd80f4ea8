package script

import (
	"bytes"
	"fmt"
	"text/template"

	"viral-script-agent/internal/domain"
)

// Style is the rule set and sampling temperature of one fidelity level.
type Style struct {
	Temperature float32
	Rules       []string
}

var styles = map[domain.Fidelity]Style{
	domain.FidelityStrict: {
		Temperature: 0.3,
		Rules: []string{
			"Use apenas fatos, números e nomes presentes na transcrição.",
			"Não invente acontecimentos, citações ou dados.",
			"Preserve a ordem dos acontecimentos do vídeo original.",
		},
	},
	domain.FidelityBalanced: {
		Temperature: 0.7,
		Rules: []string{
			"Mantenha os fatos da transcrição, mas reorganize a narrativa para prender a atenção.",
			"Pode condensar ou reordenar trechos quando isso melhorar o ritmo.",
		},
	},
	domain.FidelityCreative: {
		Temperature: 0.9,
		Rules: []string{
			"Use a transcrição como ponto de partida e priorize o impacto narrativo.",
			"Pode dramatizar, criar analogias e expandir ideias, sem contradizer o conteúdo original.",
		},
	},
}

// StyleFor returns the rule set for f. Unknown levels are an error.
func StyleFor(f domain.Fidelity) (Style, error) {
	s, ok := styles[f]
	if !ok {
		return Style{}, fmt.Errorf("unknown fidelity: %q", f)
	}
	return s, nil
}

var promptTemplate = template.Must(template.New("viral").Parse(`Você é um especialista em roteiros virais de YouTube.
Reescreva o vídeo abaixo no formato do seguinte diagrama:

1. **5 segundos iniciais (gancho explosivo refletindo a thumb)**
   - Sugira também recursos visuais/mosaicos que reforcem.

2. **30 segundos de contexto e questionamento**

3. **90 segundos alternando entre momentos opostos**

4. **Resposta superando expectativas**

5. **Opinião final**

6. **Fechamento (CTA)**

Além disso, sugira:
- **Título viral** (máx. 60 caracteres)
- **Ideia de Thumbnail**
- **Clipes curtos (Shorts/TikTok)** com minutagem
- **Sugestões de edição** (inserts, prints, mosaicos etc).

Regras de fidelidade ({{.Fidelity}}):
{{range .Rules}}- {{.}}
{{end}}
Transcrição:
{{.Transcript}}
`))

// BuildPrompt embeds transcript verbatim into the viral template with the
// rules of fidelity. An empty transcript still yields a complete prompt.
func BuildPrompt(transcript string, fidelity domain.Fidelity) (string, error) {
	style, err := StyleFor(fidelity)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = promptTemplate.Execute(&buf, struct {
		Fidelity   domain.Fidelity
		Rules      []string
		Transcript string
	}{fidelity, style.Rules, transcript})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
