package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mmdatafocus/leads_backend/config"
	"github.com/mmdatafocus/leads_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const maxImportRows = 5000

type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int               `json:"created"`
	Skipped int               `json:"skipped"`
	Errors  []*ImportRowError `json:"errors"`
}

var importColumns = []string{
	"first_name", "last_name", "phone", "email", "address", "city", "state", "zip",
	"property_type", "bedrooms", "bathrooms", "square_feet", "year_built", "estimated_value",
}

// headerIndex maps known column names in the header row to their position.
func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		for _, c := range importColumns {
			if key == c {
				index[c] = i
			}
		}
	}
	for _, required := range []string{"first_name", "phone"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing %s column", required)
		}
	}
	return index, nil
}

func cell(row []string, index map[string]int, column string) string {
	i, ok := index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func optionalInt(row []string, index map[string]int, column string) (*int, error) {
	v := cell(row, index, column)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		return nil, fmt.Errorf("%s must be a whole number", column)
	}
	return &n, nil
}

// optionalDecimal reads counts that may be fractional, such as 2.5 bathrooms.
func optionalDecimal(row []string, index map[string]int, column string) (*decimal.Decimal, error) {
	v := cell(row, index, column)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", column)
	}
	return &d, nil
}

func parseImportRow(row []string, index map[string]int) (*LeadDetails, error) {
	details := &LeadDetails{
		FirstName:    cell(row, index, "first_name"),
		LastName:     cell(row, index, "last_name"),
		Phone:        cell(row, index, "phone"),
		Email:        cell(row, index, "email"),
		Address:      cell(row, index, "address"),
		City:         cell(row, index, "city"),
		State:        cell(row, index, "state"),
		Zip:          cell(row, index, "zip"),
		PropertyType: cell(row, index, "property_type"),
	}
	var err error
	if details.Bedrooms, err = optionalInt(row, index, "bedrooms"); err != nil {
		return nil, err
	}
	if details.Bathrooms, err = optionalDecimal(row, index, "bathrooms"); err != nil {
		return nil, err
	}
	if details.SquareFeet, err = optionalInt(row, index, "square_feet"); err != nil {
		return nil, err
	}
	if details.YearBuilt, err = optionalInt(row, index, "year_built"); err != nil {
		return nil, err
	}
	if v := cell(row, index, "estimated_value"); v != "" {
		if details.EstimatedValue, err = utils.ParseMoney(v); err != nil {
			return nil, errors.New("estimated_value is not a valid amount")
		}
	}
	if err := details.normalize(); err != nil {
		return nil, err
	}
	return details, nil
}

// ImportLeads creates leads from the first sheet of an .xlsx workbook. Each row
// commits on its own; bad and duplicate rows are reported and skipped.
func ImportLeads(ctx context.Context, campaignId int, r io.Reader) (*ImportResult, error) {
	a, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	campaign, err := fetchModel[Campaign](ctx, db, a.BusinessId, campaignId)
	if err != nil {
		return nil, fmt.Errorf("campaign %d: %w", campaignId, err)
	}
	if !utils.DereferencePtr(campaign.IsActive) {
		return nil, ErrCampaignInactive
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %v", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("no rows to import")
	}
	if len(rows)-1 > maxImportRows {
		return nil, fmt.Errorf("at most %d rows can be imported at once", maxImportRows)
	}
	index, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]*ImportRowError, 0)}
	for i, row := range rows[1:] {
		rowNo := i + 2
		if isBlankRow(row) {
			continue
		}
		details, err := parseImportRow(row, index)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, &ImportRowError{Row: rowNo, Message: err.Error()})
			continue
		}
		lead := Lead{
			BusinessId:          a.BusinessId,
			CampaignId:          campaign.ID,
			QualificationStatus: QualificationStatusNew,
			Source:              "import",
			CreatedBy:           a.UserId,
		}
		if err := lead.applyDetails(details); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, &ImportRowError{Row: rowNo, Message: err.Error()})
			continue
		}
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return insertLead(tx, &lead, fmt.Sprintf("Lead %s imported into campaign %s.", lead.FullName(), campaign.Name))
		})
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, &ImportRowError{Row: rowNo, Message: err.Error()})
			continue
		}
		result.Created++
	}

	config.GetLogger().WithField("campaign_id", campaign.ID).
		WithField("created", result.Created).
		WithField("skipped", result.Skipped).
		Info("lead import finished")
	return result, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
