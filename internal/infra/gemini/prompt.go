package gemini

import (
	"strings"

	"google.golang.org/genai"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
)

// InstructionVersion identifies the instruction set and output schema below.
// Bump it whenever either changes; it is attached to every extraction span.
const InstructionVersion = "2024-06-v3"

// Categories is the curated label list suggested to the model.
var Categories = []string{
	"Aluguel",
	"Vendas",
	"Fornecedores",
	"Salários",
	"Impostos",
	"Marketing",
	"Transporte",
	"Alimentação",
	domain.DefaultCategory,
}

const systemInstruction = `Você é um extrator de dados financeiros para microempreendedores brasileiros.
Sua única tarefa é ler frases (ou áudios curtos) e extrair os dados para JSON.
Regras de ouro:
- Interprete gírias: 'paguei', 'gastei', 'pix pra', 'boleto', 'perdi' são sempre 'expense'.
- Interprete gírias: 'recebi', 'vendi', 'entrou', 'ganhei', 'pix de' são sempre 'income'.
- Se o usuário não disser o valor claramente (ex: 'vendi um bolo'), retorne valor 0 ou null.
- O campo valor é sempre um número absoluto, sem símbolo de moeda.
- O campo categoria deve ser padronizado: {{CATEGORIES}}. Se nada se encaixar, use '{{DEFAULT}}'.
- O campo descricao é uma frase curta, com a primeira letra maiúscula.
- NUNCA adicione texto extra. Retorne apenas o objeto JSON.`

// Instruction renders the system instruction with the category list.
func Instruction() string {
	r := strings.NewReplacer(
		"{{CATEGORIES}}", strings.Join(Categories, ", "),
		"{{DEFAULT}}", domain.DefaultCategory,
	)
	return r.Replace(systemInstruction)
}

// responseSchema is the structured-output contract enforced by the service.
func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"descricao": {
				Type:        genai.TypeString,
				Description: "Breve descrição do que foi comprado ou vendido",
			},
			"valor": {
				Type:        genai.TypeNumber,
				Description: "Valor numérico absoluto",
				Nullable:    genai.Ptr(true),
			},
			"tipo": {
				Type:        genai.TypeString,
				Enum:        []string{string(domain.KindIncome), string(domain.KindExpense)},
				Description: "income para entrada/venda, expense para saída/pagamento",
			},
			"categoria": {
				Type:        genai.TypeString,
				Description: "Uma categoria curta da lista sugerida",
			},
		},
		Required:         []string{"descricao", "valor", "tipo", "categoria"},
		PropertyOrdering: []string{"descricao", "valor", "tipo", "categoria"},
	}
}
