package service

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/piyawatt/invoice-ocr-service/dto"
	"github.com/piyawatt/invoice-ocr-service/logger"
	"github.com/piyawatt/invoice-ocr-service/utils"
)

// Vendor master column headers as they appear in Vendor_branch.xlsx.
const (
	colTaxID      = "เลขประจำตัวผู้เสียภาษี"
	colBranch     = "สาขา"
	colVendorCode = "Vendor code SAP"
	colVendorName = "ชื่อบริษัท"
)

// DefaultVendorMasterFile is the workbook shipped next to the binary.
const DefaultVendorMasterFile = "Vendor_branch.xlsx"

type vendorKey struct {
	taxID  string
	branch string
}

// VendorMaster maps (tax ID, branch) pairs to SAP vendor codes.
type VendorMaster struct {
	entries map[vendorKey]dto.VendorInfo
	log     zerolog.Logger
}

// NewEmptyVendorMaster returns a master that maps nothing. Used when the
// workbook is missing so extraction still runs.
func NewEmptyVendorMaster() *VendorMaster {
	return &VendorMaster{
		entries: map[vendorKey]dto.VendorInfo{},
		log:     logger.With("vendor-master"),
	}
}

// LoadVendorMaster reads the vendor workbook. A missing file is reported
// as a warning by the caller, not an error here.
func LoadVendorMaster(path string) (*VendorMaster, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("vendor master not found: %w", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vendor master: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("vendor master has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor master rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("vendor master has no data rows")
	}

	// Header row drives column positions; headers may carry stray spaces.
	idx := map[string]int{}
	for i, header := range rows[0] {
		idx[strings.TrimSpace(header)] = i
	}
	for _, required := range []string{colTaxID, colBranch, colVendorCode} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("vendor master missing column %q", required)
		}
	}

	vm := NewEmptyVendorMaster()
	for _, row := range rows[1:] {
		taxID := utils.NormalizeTaxID(cell(row, idx[colTaxID]))
		if taxID == "" {
			continue
		}
		branch := utils.ZeroPadBranch(cell(row, idx[colBranch]))

		info := dto.VendorInfo{Code: strings.TrimSpace(cell(row, idx[colVendorCode]))}
		if nameIdx, ok := idx[colVendorName]; ok {
			info.Name = strings.TrimSpace(cell(row, nameIdx))
		}
		vm.entries[vendorKey{taxID: taxID, branch: branch}] = info
	}

	vm.log.Info().Str("file", path).Int("entries", len(vm.entries)).Msg("vendor master loaded")
	return vm, nil
}

// Lookup maps an OCR'd tax ID and branch to the vendor master entry.
func (vm *VendorMaster) Lookup(taxID, branch string) (dto.VendorInfo, bool) {
	key := vendorKey{
		taxID:  utils.NormalizeTaxID(taxID),
		branch: utils.ZeroPadBranch(branch),
	}
	info, ok := vm.entries[key]
	return info, ok
}

// Size reports how many mappings are loaded.
func (vm *VendorMaster) Size() int { return len(vm.entries) }

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

