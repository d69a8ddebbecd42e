package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// SalesTemplate is one generated sales row
type SalesTemplate struct {
	Approved time.Time
	Client   string
	Amount   decimal.Decimal
	Note     string
}

// FixtureGenerator writes reference and sales workbooks for manual runs
type FixtureGenerator struct {
	rand        *rand.Rand
	pairs       int
	clients     int
	rows        int
	typoRatio   float64
	blankRatio  float64
	strayRatio  float64
	salespeople []string
	assignments map[string]string
}

var salespeople = []string{
	"Ana Souza", "Bruno Lima", "Carla Mendes", "Diego Rocha", "Elaine Costa", "Fábio Nunes",
}

var clientStems = []string{
	"Tech Solutions", "Comércio Silva", "Padaria São João", "Construtora Alvorada",
	"Farmácia Popular", "Mercado Boa Vista", "Oficina Mecânica Irmãos", "Auto Peças Brasil",
	"Distribuidora Ipê", "Clínica Vida", "Transportes Ágil", "Papelaria Central",
}

var strayClients = []string{"Umbrella Corp", "Initech", "Cliente Avulso", "Consumidor Final"}

func main() {
	var (
		outputDir  = flag.String("output-dir", "../generated", "Output directory for generated files")
		pairs      = flag.Int("pairs", 3, "Vendedor | Cliente column pairs in the reference sheet")
		clients    = flag.Int("clients", 40, "Distinct clients in the reference sheet")
		rows       = flag.Int("rows", 500, "Sales rows")
		typoRatio  = flag.Float64("typo-ratio", 0.2, "Share of sales rows with a misspelled client")
		blankRatio = flag.Float64("blank-ratio", 0.05, "Share of sales rows without a client")
		strayRatio = flag.Float64("stray-ratio", 0.05, "Share of sales rows with an unknown client")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	if *pairs < 1 || *clients < 1 || *rows < 0 {
		log.Fatal("pairs and clients must be positive, rows cannot be negative")
	}
	if *typoRatio+*blankRatio+*strayRatio > 1 {
		log.Fatal("typo, blank and stray ratios cannot add up to more than 1")
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	fg := &FixtureGenerator{
		rand:        rand.New(rand.NewSource(*seed)),
		pairs:       *pairs,
		clients:     *clients,
		rows:        *rows,
		typoRatio:   *typoRatio,
		blankRatio:  *blankRatio,
		strayRatio:  *strayRatio,
		salespeople: salespeople,
		assignments: make(map[string]string),
	}

	clientNames := fg.GenerateClients()

	reference := filepath.Join(*outputDir, "vendedores.xlsx")
	if err := fg.WriteReference(reference, clientNames); err != nil {
		log.Fatalf("Failed to write reference workbook: %v", err)
	}

	sales := filepath.Join(*outputDir, "vendas.xlsx")
	if err := fg.WriteSales(sales, fg.GenerateSales(clientNames)); err != nil {
		log.Fatalf("Failed to write sales workbook: %v", err)
	}

	fmt.Printf("Generated %d clients in %d column pairs: %s\n", len(clientNames), fg.pairs, reference)
	fmt.Printf("Generated %d sales rows (seed %d): %s\n", fg.rows, *seed, sales)
	fmt.Printf("\nRun:\n  attributor attribute -r %s -s %s -f console\n", reference, sales)
}

// GenerateClients returns distinct client names and assigns each a salesperson
func (fg *FixtureGenerator) GenerateClients() []string {
	names := make([]string, 0, fg.clients)
	for i := 0; i < fg.clients; i++ {
		name := clientStems[i%len(clientStems)]
		if i >= len(clientStems) {
			name = fmt.Sprintf("%s %d", name, i/len(clientStems)+1)
		}
		names = append(names, name)
		fg.assignments[name] = fg.salespeople[fg.rand.Intn(len(fg.salespeople))]
	}
	return names
}

// GenerateSales draws sales rows: mostly exact clients, some misspelled,
// some blank and some unknown to the reference
func (fg *FixtureGenerator) GenerateSales(clientNames []string) []SalesTemplate {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	sales := make([]SalesTemplate, 0, fg.rows)

	for i := 0; i < fg.rows; i++ {
		s := SalesTemplate{
			Approved: start.AddDate(0, 0, fg.rand.Intn(90)),
			Amount:   decimal.NewFromInt(int64(fg.rand.Intn(500000) + 1000)).Div(decimal.NewFromInt(100)),
		}

		r := fg.rand.Float64()
		client := clientNames[fg.rand.Intn(len(clientNames))]
		switch {
		case r < fg.blankRatio:
			s.Note = "sem cliente"
		case r < fg.blankRatio+fg.strayRatio:
			s.Client = strayClients[fg.rand.Intn(len(strayClients))]
			s.Note = "fora da carteira"
		case r < fg.blankRatio+fg.strayRatio+fg.typoRatio:
			s.Client = fg.misspell(client)
			s.Note = "digitação"
		default:
			s.Client = fg.recase(client)
		}
		sales = append(sales, s)
	}
	return sales
}

// misspell drops one letter and strips accents from part of the names
func (fg *FixtureGenerator) misspell(name string) string {
	runes := []rune(name)
	if len(runes) > 6 {
		i := 1 + fg.rand.Intn(len(runes)-2)
		runes = append(runes[:i], runes[i+1:]...)
	}
	out := string(runes)
	if fg.rand.Intn(2) == 0 {
		out = strings.NewReplacer("ã", "a", "á", "a", "é", "e", "ê", "e", "ç", "c", "Á", "A", "ô", "o").Replace(out)
	}
	return fg.recase(out)
}

func (fg *FixtureGenerator) recase(name string) string {
	switch fg.rand.Intn(4) {
	case 0:
		return strings.ToUpper(name)
	case 1:
		return strings.ToLower(name)
	case 2:
		return "  " + name + " "
	default:
		return name
	}
}

// WriteReference lays the clients out in side-by-side Vendedor | Cliente pairs
func (fg *FixtureGenerator) WriteReference(filename string, clientNames []string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Carteira"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	perPair := (len(clientNames) + fg.pairs - 1) / fg.pairs
	for p := 0; p < fg.pairs; p++ {
		ownerCol, _ := excelize.ColumnNumberToName(2*p + 1)
		clientCol, _ := excelize.ColumnNumberToName(2*p + 2)
		if err := f.SetCellStr(sheet, ownerCol+"1", "Vendedor"); err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, clientCol+"1", "Cliente"); err != nil {
			return err
		}

		for i := 0; i < perPair; i++ {
			idx := p*perPair + i
			if idx >= len(clientNames) {
				break
			}
			row := i + 2
			name := clientNames[idx]
			if err := f.SetCellStr(sheet, fmt.Sprintf("%s%d", ownerCol, row), fg.assignments[name]); err != nil {
				return err
			}
			if err := f.SetCellStr(sheet, fmt.Sprintf("%s%d", clientCol, row), name); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(filename)
}

// WriteSales writes the sales sheet with the date, client and amount columns
// out of their output order
func (fg *FixtureGenerator) WriteSales(filename string, sales []SalesTemplate) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Vendas"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", []interface{}{"Obs", "Valor Total", "Clientes", "Data Aprovação"}); err != nil {
		return err
	}

	for i, s := range sales {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		amount, _ := s.Amount.Float64()
		var client interface{}
		if s.Client != "" {
			client = s.Client
		}
		if err := sw.SetRow(cell, []interface{}{s.Note, amount, client, s.Approved.Format("2006-01-02")}); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	return f.SaveAs(filename)
}
