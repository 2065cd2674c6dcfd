// Package vocab provides the region profile: every vocabulary, range and
// rate the fabrication engine draws from. A profile is plain YAML; the
// default en_GB profile is embedded in the binary.
package vocab

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/dvloznov/artifact-engine/internal/errs"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default_profile.yaml
var defaultProfileYAML []byte

// Dec is a decimal that decodes from a YAML scalar without going through
// float64.
type Dec struct {
	decimal.Decimal
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Dec) UnmarshalYAML(n *yaml.Node) error {
	v, err := decimal.NewFromString(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a decimal: %w", n.Line, n.Value, err)
	}
	d.Decimal = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Dec) MarshalYAML() (any, error) {
	return d.String(), nil
}

// D is shorthand for building a Dec in code and tests.
func D(s string) Dec {
	return Dec{decimal.RequireFromString(s)}
}

// IntRange is an inclusive integer range.
type IntRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// DecRange is an inclusive decimal range.
type DecRange struct {
	Min Dec `yaml:"min"`
	Max Dec `yaml:"max"`
}

// People holds personal name vocabularies.
type People struct {
	FirstNames []string `yaml:"first_names"`
	LastNames  []string `yaml:"last_names"`
}

// Companies holds the parts used to compose company names.
type Companies struct {
	Words    []string `yaml:"words"`
	Suffixes []string `yaml:"suffixes"`
}

// Addresses holds the parts used to compose postal addresses and phones.
type Addresses struct {
	Streets       []string `yaml:"streets"`
	Towns         []string `yaml:"towns"`
	PostcodeAreas []string `yaml:"postcode_areas"`
	// PhonePattern uses '#' for a digit and '?' for an upper-case letter.
	PhonePattern string `yaml:"phone_pattern"`
}

// InvoiceVocab configures invoice fabrication.
type InvoiceVocab struct {
	NumberPattern   string   `yaml:"number_pattern"`
	TaxRates        []Dec    `yaml:"tax_rates"`
	DueOffsetsDays  []int    `yaml:"due_offsets_days"`
	LookbackDays    int      `yaml:"lookback_days"`
	LineItems       IntRange `yaml:"line_items"`
	ServiceShare    Dec      `yaml:"service_share"`
	ServiceQuantity IntRange `yaml:"service_quantity"`
	ServicePrice    DecRange `yaml:"service_price"`
	ProductQuantity DecRange `yaml:"product_quantity"`
	ProductPrice    DecRange `yaml:"product_price"`
	Services        []string `yaml:"services"`
	Products        []string `yaml:"products"`
}

// PaymentMethod is a way of settling a receipt.
type PaymentMethod struct {
	Name string `yaml:"name"`
	Card bool   `yaml:"card"`
}

// StoreItem is a product a store category sells.
type StoreItem struct {
	Description string   `yaml:"description"`
	Price       DecRange `yaml:"price"`
}

// Fuel configures pump lines on receipts of a fuel-selling category.
type Fuel struct {
	// Share is the probability that any one line is a fuel line.
	Share        Dec      `yaml:"share"`
	Descriptions []string `yaml:"descriptions"`
	// Volume is the dispensed quantity in litres.
	Volume    DecRange `yaml:"volume"`
	UnitPrice DecRange `yaml:"unit_price"`
}

// StoreCategory is one kind of retail store.
type StoreCategory struct {
	Name          string      `yaml:"name"`
	NameTemplates []string    `yaml:"name_templates"`
	Adjectives    []string    `yaml:"adjectives"`
	Items         []StoreItem `yaml:"items"`
	Fuel          *Fuel       `yaml:"fuel,omitempty"`
}

// ReceiptVocab configures receipt fabrication.
type ReceiptVocab struct {
	NumberPattern      string          `yaml:"number_pattern"`
	TransactionPattern string          `yaml:"transaction_pattern"`
	TaxRate            Dec             `yaml:"tax_rate"`
	LookbackDays       int             `yaml:"lookback_days"`
	BusinessHours      IntRange        `yaml:"business_hours"`
	Items              IntRange        `yaml:"items"`
	QuantityWeights    []int           `yaml:"quantity_weights"`
	PaymentMethods     []PaymentMethod `yaml:"payment_methods"`
	Categories         []StoreCategory `yaml:"categories"`
}

// Bank is a statement issuer.
type Bank struct {
	Name           string `yaml:"name"`
	Address        string `yaml:"address"`
	SortCodePrefix string `yaml:"sort_code_prefix"`
}

// Direction says which side of the ledger a transaction category hits.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// TransactionCategory is one weighted kind of statement line.
type TransactionCategory struct {
	Name      string    `yaml:"name"`
	Direction Direction `yaml:"direction"`
	Weight    int       `yaml:"weight"`
	Amount    DecRange  `yaml:"amount"`
	// Step, when set, rounds amounts down to a multiple of it.
	Step         *Dec     `yaml:"step,omitempty"`
	Descriptions []string `yaml:"descriptions"`
	Payees       []string `yaml:"payees,omitempty"`
}

// StatementVocab configures statement fabrication.
type StatementVocab struct {
	Transactions   IntRange              `yaml:"transactions"`
	MonthsBack     IntRange              `yaml:"months_back"`
	IssueDelayDays IntRange              `yaml:"issue_delay_days"`
	OpeningBalance DecRange              `yaml:"opening_balance"`
	AccountDigits  int                   `yaml:"account_digits"`
	Banks          []Bank                `yaml:"banks"`
	Categories     []TransactionCategory `yaml:"categories"`
}

// Profile is one region's complete vocabulary.
type Profile struct {
	Region    string         `yaml:"region"`
	Currency  string         `yaml:"currency"`
	People    People         `yaml:"people"`
	Companies Companies      `yaml:"companies"`
	Addresses Addresses      `yaml:"addresses"`
	Invoice   InvoiceVocab   `yaml:"invoice"`
	Receipt   ReceiptVocab   `yaml:"receipt"`
	Statement StatementVocab `yaml:"statement"`
}

// Default returns the embedded en_GB profile.
func Default() (*Profile, error) {
	p, err := Parse(defaultProfileYAML)
	if err != nil {
		return nil, fmt.Errorf("Default: %w", err)
	}
	return p, nil
}

// Load reads and validates a profile from a YAML file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Configf("profile", "read %s: %v", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("Load %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errs.Configf("profile", "decode yaml: %v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Category looks up a store category by name.
func (p *Profile) Category(name string) (StoreCategory, bool) {
	for _, c := range p.Receipt.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return StoreCategory{}, false
}
