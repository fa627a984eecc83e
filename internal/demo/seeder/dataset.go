package seeder

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// Customer is one row of the synthetic spreadsheet. The columns are
// picked so every built-in example question has something to chew on:
// averages over income, grouping by region and category, and an
// approval rate split by gender.
type Customer struct {
	ID           int
	Region       string
	Gender       string
	Category     string
	Income       float64
	Sales        float64
	LoanApproved bool
}

type Dataset struct {
	Customers []Customer
}

var (
	regions    = []string{"north", "south", "east", "west"}
	genders    = []string{"female", "male"}
	categories = []string{"electronics", "clothing", "grocery", "home"}
)

// Generate builds a deterministic dataset for a given seed.
func Generate(rows int, seed int64) Dataset {
	rnd := rand.New(rand.NewSource(seed))
	customers := make([]Customer, 0, rows)
	for i := 0; i < rows; i++ {
		region := pickOne(rnd, regions)
		gender := pickOne(rnd, genders)
		income := 30000 + rnd.Float64()*80000
		if region == "north" {
			income *= 1.1
		}
		approvalRate := 0.48
		if gender == "female" {
			approvalRate = 0.58
		}
		customers = append(customers, Customer{
			ID:           i + 1,
			Region:       region,
			Gender:       gender,
			Category:     pickOne(rnd, categories),
			Income:       round2(income),
			Sales:        round2(20 + rnd.Float64()*480),
			LoanApproved: rnd.Float64() < approvalRate,
		})
	}
	return Dataset{Customers: customers}
}

func Header() []string {
	return []string{"customer_id", "region", "gender", "category", "income", "sales", "loan_approved"}
}

func (d Dataset) records() [][]string {
	rows := make([][]string, 0, len(d.Customers))
	for _, c := range d.Customers {
		approved := "no"
		if c.LoanApproved {
			approved = "yes"
		}
		rows = append(rows, []string{
			strconv.Itoa(c.ID),
			c.Region,
			c.Gender,
			c.Category,
			strconv.FormatFloat(c.Income, 'f', 2, 64),
			strconv.FormatFloat(c.Sales, 'f', 2, 64),
			approved,
		})
	}
	return rows
}

func (d Dataset) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header()); err != nil {
		return err
	}
	for _, row := range d.records() {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (d Dataset) CSVBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d Dataset) WriteXLSX(w io.Writer) error {
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	sheet := file.GetSheetName(0)
	header := make([]any, 0, len(Header()))
	for _, name := range Header() {
		header = append(header, name)
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range d.records() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		cells := make([]any, 0, len(row))
		for _, value := range row {
			cells = append(cells, value)
		}
		if err := file.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return file.Write(w)
}

// SaveFiles writes the dataset as customers.csv and customers.xlsx
// under dir, creating it if needed. The two files are independent so
// they are written concurrently.
func (d Dataset) SaveFiles(dir string) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}
	csvPath := filepath.Join(dir, "customers.csv")
	xlsxPath := filepath.Join(dir, "customers.xlsx")

	var group errgroup.Group
	group.Go(func() error {
		f, err := os.Create(csvPath)
		if err != nil {
			return err
		}
		if err := d.WriteCSV(f); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
	group.Go(func() error {
		f, err := os.Create(xlsxPath)
		if err != nil {
			return err
		}
		if err := d.WriteXLSX(f); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	})
	if err := group.Wait(); err != nil {
		return "", "", err
	}
	return csvPath, xlsxPath, nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
