package loadgen

import (
	"math/rand"
	"strings"

	"github.com/okian/sentiment/internal/domain/analysis"
)

var (
	openers = []string{
		"O produto", "O atendimento", "A entrega", "O aplicativo", "A loja",
		"The service", "The delivery", "El producto",
	}
	verdicts = []string{
		"foi excelente", "chegou atrasado", "é razoável", "superou minhas expectativas",
		"veio com defeito", "funciona como esperado", "was great", "was terrible", "está bien",
	}
	tails = []string{
		"", "e recomendo a todos", "mas o preço é alto", "nunca mais compro",
		"e o suporte respondeu rápido", "porém a embalagem estava danificada",
	}
)

// Generate builds n analysis requests from a fixed vocabulary. Texts vary in
// length so every length bucket gets traffic.
func Generate(n int, seed int64) []Request {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // test traffic only
	models := analysis.ModelLabels()

	out := make([]Request, n)
	for i := range out {
		parts := []string{pick(rng, openers), pick(rng, verdicts)}
		if t := pick(rng, tails); t != "" {
			parts = append(parts, t)
		}
		text := strings.Join(parts, " ")
		if rng.Intn(5) == 0 {
			text = strings.Repeat(text+". ", 3)
		}
		out[i] = Request{Text: strings.TrimSpace(text), Algorithm: pick(rng, models)}
	}
	return out
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.Intn(len(from))]
}
