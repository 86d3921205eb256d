package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"petsitting/internal/logging"
	"petsitting/internal/models"

	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{"ID", "Status", "Service", "Pet", "Price", "Start", "End", "Owner", "Sitter"}

var exportSheetNames = map[models.Role]string{
	models.RoleOwner:  "My pet bookings",
	models.RoleSitter: "My sitting requests",
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	v, err := b.dashboard(ctx, chatID)
	if err != nil {
		b.sendMessage(chatID, errorMessage(err))
		return
	}

	role := v.dashboard.Active()
	col := v.dashboard.Collection(role)
	if !col.Snapshot().Loaded {
		b.loadTab(ctx, chatID, v, role)
	}
	view := col.Snapshot()
	if view.Err != nil {
		b.sendMessage(chatID, errorMessage(view.Err))
		return
	}
	if len(view.Bookings) == 0 {
		b.sendMessage(chatID, "There is nothing to export yet.")
		return
	}

	dir := "exports"
	if b.config != nil && b.config.Exports.Path != "" {
		dir = b.config.Exports.Path
	}
	path, err := exportToExcel(dir, chatID, role, view.Bookings, b.now())
	if err != nil {
		logging.FromContext(ctx, b.logger).Error().Err(err).Msg("Failed to build export")
		b.sendMessage(chatID, errorMessage(err))
		return
	}
	defer os.Remove(path)

	logging.FromContext(ctx, b.logger).Info().Str("file_path", path).Int("bookings", len(view.Bookings)).Msg("Excel file created")

	caption := fmt.Sprintf("%s (%d)", exportSheetNames[role], len(view.Bookings))
	if _, err := b.tgService.SendDocument(chatID, path, caption); err != nil {
		logging.FromContext(ctx, b.logger).Error().Err(err).Msg("Failed to send export")
		b.sendMessage(chatID, errorMessage(err))
	}
}

// exportToExcel создает Excel файл со списком бронирований в порядке списка
func exportToExcel(dir string, chatID int64, role models.Role, bookings []models.Booking, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := exportSheetNames[role]
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	mutedStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Italic: true, Color: "#808080"},
	})

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, booking := range bookings {
		row := i + 2
		price, _ := booking.Price.Float64()
		values := []interface{}{
			booking.ID,
			string(booking.Status),
			booking.ServiceTitle,
			booking.PetName,
			price,
			booking.StartDate.String(),
			booking.EndDate.String(),
			booking.OwnerName,
			booking.SitterName,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return "", fmt.Errorf("error writing row %d: %w", row, err)
		}
		if booking.Muted() {
			end, _ := excelize.CoordinatesToCellName(len(exportHeaders), row)
			_ = f.SetCellStyle(sheetName, start, end, mutedStyle)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "D", 25)
	_ = f.SetColWidth(sheetName, "E", "G", 14)
	_ = f.SetColWidth(sheetName, "H", "I", 20)

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_%d_%s.xlsx", role, chatID, now.Format("20060102_150405"))
	filePath := filepath.Join(dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}
