// Package ingest loads the three source CSV files into typed ledger tables.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"trade-recon-go/ledger"
)

var ErrEmptyFile = errors.New("csv has no header row")

// nullTokens are read as missing values in every column.
var nullTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// sheet is a parsed CSV: header plus cells addressed by column name.
type sheet struct {
	header []string
	pos    map[string]int
	rows   [][]string
}

func readSheet(r io.Reader, source string) (*sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyFile)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", source, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: read records: %w", source, err)
	}

	s := &sheet{header: header, pos: make(map[string]int, len(header)), rows: records}
	for i, h := range header {
		if _, dup := s.pos[h]; !dup {
			s.pos[h] = i
		}
	}
	return s, nil
}

// cell returns the value of col in row, with null tokens folded to "".
func (s *sheet) cell(row []string, col string) string {
	i, ok := s.pos[col]
	if !ok || i >= len(row) {
		return ""
	}
	v := row[i]
	if _, null := nullTokens[strings.TrimSpace(v)]; null {
		return ""
	}
	return v
}

// extra collects the columns outside the known set.
func (s *sheet) extra(row []string, known []string) map[string]string {
	var out map[string]string
	for _, h := range s.header {
		if contains(known, h) {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[h] = s.cell(row, h)
	}
	return out
}

// ReadTrades parses a trade ledger.
func ReadTrades(r io.Reader, source string) (ledger.Table[*ledger.Trade], error) {
	tbl := ledger.Table[*ledger.Trade]{Source: source}
	s, err := readSheet(r, source)
	if err != nil {
		return tbl, err
	}
	tbl.Columns = s.header
	if err := tbl.Require(ledger.TradeColumns...); err != nil {
		return tbl, err
	}
	tbl.Rows = make([]*ledger.Trade, 0, len(s.rows))
	for i, row := range s.rows {
		tbl.Rows = append(tbl.Rows, &ledger.Trade{
			Index:       i,
			TradeID:     s.cell(row, ledger.ColTradeID),
			Timestamp:   s.cell(row, ledger.ColTimestamp),
			Symbol:      s.cell(row, ledger.ColSymbol),
			Quantity:    parseNumber(s.cell(row, ledger.ColQuantity)),
			Price:       parseNumber(s.cell(row, ledger.ColPrice)),
			BuyerID:     s.cell(row, ledger.ColBuyerID),
			SellerID:    s.cell(row, ledger.ColSellerID),
			TradeStatus: s.cell(row, ledger.ColTradeStatus),
			Extra:       s.extra(row, ledger.TradeColumns),
		})
	}
	return tbl, nil
}

// ReadFills parses a counterparty fill feed.
func ReadFills(r io.Reader, source string) (ledger.Table[*ledger.Fill], error) {
	tbl := ledger.Table[*ledger.Fill]{Source: source}
	s, err := readSheet(r, source)
	if err != nil {
		return tbl, err
	}
	tbl.Columns = s.header
	if err := tbl.Require(ledger.FillColumns...); err != nil {
		return tbl, err
	}
	tbl.Rows = make([]*ledger.Fill, 0, len(s.rows))
	for i, row := range s.rows {
		tbl.Rows = append(tbl.Rows, &ledger.Fill{
			Index:      i,
			OurTradeID: s.cell(row, ledger.ColOurTradeID),
			Symbol:     s.cell(row, ledger.ColSymbol),
			Quantity:   parseNumber(s.cell(row, ledger.ColQuantity)),
			Price:      parseNumber(s.cell(row, ledger.ColPrice)),
			Timestamp:  s.cell(row, ledger.ColTimestamp),
			Extra:      s.extra(row, ledger.FillColumns),
		})
	}
	return tbl, nil
}

// ReadSymbols parses the symbol reference table. is_active values that are
// not boolean literals count as inactive.
func ReadSymbols(r io.Reader, source string) (ledger.Table[*ledger.Symbol], error) {
	tbl := ledger.Table[*ledger.Symbol]{Source: source}
	s, err := readSheet(r, source)
	if err != nil {
		return tbl, err
	}
	tbl.Columns = s.header
	if err := tbl.Require(ledger.SymbolColumns...); err != nil {
		return tbl, err
	}
	tbl.Rows = make([]*ledger.Symbol, 0, len(s.rows))
	for i, row := range s.rows {
		active, _ := strconv.ParseBool(strings.TrimSpace(s.cell(row, ledger.ColIsActive)))
		tbl.Rows = append(tbl.Rows, &ledger.Symbol{
			Index:    i,
			Symbol:   s.cell(row, ledger.ColSymbol),
			IsActive: active,
		})
	}
	return tbl, nil
}

// LoadTrades reads the trade ledger at path; the table source is the file name.
func LoadTrades(path string) (ledger.Table[*ledger.Trade], error) {
	f, err := os.Open(path)
	if err != nil {
		return ledger.Table[*ledger.Trade]{}, fmt.Errorf("open trades: %w", err)
	}
	defer f.Close()
	return ReadTrades(f, filepath.Base(path))
}

// LoadFills reads the counterparty fill feed at path.
func LoadFills(path string) (ledger.Table[*ledger.Fill], error) {
	f, err := os.Open(path)
	if err != nil {
		return ledger.Table[*ledger.Fill]{}, fmt.Errorf("open fills: %w", err)
	}
	defer f.Close()
	return ReadFills(f, filepath.Base(path))
}

// LoadSymbols reads the symbol reference at path.
func LoadSymbols(path string) (ledger.Table[*ledger.Symbol], error) {
	f, err := os.Open(path)
	if err != nil {
		return ledger.Table[*ledger.Symbol]{}, fmt.Errorf("open symbols: %w", err)
	}
	defer f.Close()
	return ReadSymbols(f, filepath.Base(path))
}

// parseNumber returns nil for empty, unparseable or NaN values.
func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
