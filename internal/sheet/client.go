package sheet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// ClientConfig says where the spreadsheet is and how to authorize.
// SpreadsheetID wins over Name; Name is resolved through Drive.
type ClientConfig struct {
	CredsPath     string
	SpreadsheetID string
	Name          string
}

// Client wraps the Sheets (and, for lookup by title, Drive) APIs.
type Client struct {
	sheets        *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewClient authorizes with a service-account credentials file. Extra
// options are appended after the credentials, which lets tests point the
// services at a local endpoint.
func NewClient(ctx context.Context, cfg ClientConfig, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var base []option.ClientOption
	if cfg.CredsPath != "" {
		base = append(base, option.WithCredentialsFile(cfg.CredsPath))
	}

	logger.Info("authenticating with Google Sheets", "creds_path", cfg.CredsPath)
	svc, err := sheets.NewService(ctx, clientOptions(base, sheets.SpreadsheetsScope, opts)...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	id := cfg.SpreadsheetID
	if id == "" {
		if cfg.Name == "" {
			return nil, fmt.Errorf("neither spreadsheet ID nor name configured")
		}
		driveSvc, err := drive.NewService(ctx, clientOptions(base, drive.DriveMetadataReadonlyScope, opts)...)
		if err != nil {
			return nil, fmt.Errorf("creating drive service: %w", err)
		}
		id, err = findSpreadsheet(ctx, driveSvc, cfg.Name)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("opened spreadsheet", "name", cfg.Name, "id", id)
	return &Client{sheets: svc, spreadsheetID: id, logger: logger}, nil
}

func (c *Client) SpreadsheetID() string { return c.spreadsheetID }

func clientOptions(base []option.ClientOption, scope string, extra []option.ClientOption) []option.ClientOption {
	out := make([]option.ClientOption, 0, len(base)+1+len(extra))
	out = append(out, base...)
	out = append(out, option.WithScopes(scope))
	return append(out, extra...)
}

func findSpreadsheet(ctx context.Context, svc *drive.Service, name string) (string, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(name)
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escaped, spreadsheetMimeType)

	res, err := svc.Files.List().
		Q(q).
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("looking up spreadsheet %q: %w", name, err)
	}
	if len(res.Files) == 0 {
		return "", fmt.Errorf("spreadsheet %q not found or not shared with the service account", name)
	}
	return res.Files[0].Id, nil
}

// ReadGrid returns the worksheet's cell text and its grid size.
func (c *Client) ReadGrid(ctx context.Context, worksheet string) (Grid, Bounds, error) {
	ss, err := c.sheets.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, Bounds{}, fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	var bounds Bounds
	found := false
	for _, s := range ss.Sheets {
		if s.Properties == nil || s.Properties.Title != worksheet {
			continue
		}
		found = true
		if gp := s.Properties.GridProperties; gp != nil {
			bounds = Bounds{Rows: int(gp.RowCount), Cols: int(gp.ColumnCount)}
		}
		break
	}
	if !found {
		return nil, Bounds{}, fmt.Errorf("worksheet %q not found", worksheet)
	}

	vr, err := c.sheets.Spreadsheets.Values.Get(c.spreadsheetID, QuoteSheetName(worksheet)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, Bounds{}, fmt.Errorf("reading worksheet %q: %w", worksheet, err)
	}

	grid := make(Grid, len(vr.Values))
	for i, row := range vr.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		grid[i] = cells
	}

	c.logger.Debug("read worksheet", "worksheet", worksheet, "rows", len(grid), "grid_rows", bounds.Rows, "grid_cols", bounds.Cols)
	return grid, bounds, nil
}

// BatchUpdate writes all updates in one values:batchUpdate call.
func (c *Client) BatchUpdate(ctx context.Context, worksheet string, updates []Update) error {
	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &sheets.ValueRange{
			Range:  u.Cell.A1(worksheet),
			Values: [][]interface{}{{u.Value}},
		})
	}

	res, err := c.sheets.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("batch updating values: %w", err)
	}

	c.logger.Debug("batch update applied", "cells", res.TotalUpdatedCells)
	return nil
}
