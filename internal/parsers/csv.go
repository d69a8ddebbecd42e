package parsers

import (
	"bytes"
	"encoding/csv"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"sales-attribution-service/internal/models"
	"sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

// readCSV reads a delimited text file. Files that are not valid UTF-8 are
// decoded as Windows-1252, the usual encoding of spreadsheet exports.
func (r *Reader) readCSV(path string) ([][]models.Cell, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileError("", path, err)
	}

	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, errors.ParseError(errors.CodeInvalidFormat, path, "file is neither UTF-8 nor Windows-1252", err).
				WithSuggestion("save the file in UTF-8 encoding and try again")
		}
		r.logger.WithField("file_path", path).Warn("File is not UTF-8, decoded as Windows-1252")
		data = decoded
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	r.configureReader(reader, data)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, "malformed CSV", err).
			WithSuggestion("check quoting and the field delimiter")
	}

	r.logger.WithFields(logger.Fields{
		"file_path": path,
		"delimiter": string(reader.Comma),
		"records":   len(records),
	}).Debug("Read CSV file")

	rows := make([][]models.Cell, len(records))
	for i, record := range records {
		cells := make([]models.Cell, len(record))
		for j, field := range record {
			if i == 0 {
				cells[j] = models.Text(field)
				continue
			}
			cells[j] = ParseCell(field)
		}
		rows[i] = cells
	}
	return rows, nil
}

// configureReader sets up the CSV reader with our configuration
func (r *Reader) configureReader(reader *csv.Reader, data []byte) {
	reader.Comma = r.config.Delimiter
	if reader.Comma == 0 {
		reader.Comma = sniffDelimiter(data)
	}
	reader.Comment = r.config.Comment
	reader.TrimLeadingSpace = r.config.TrimLeadingSpace
	reader.LazyQuotes = r.config.LazyQuotes
	reader.FieldsPerRecord = -1
}

// sniffDelimiter picks the most frequent candidate delimiter on the first line
func sniffDelimiter(data []byte) rune {
	line := string(data)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}

	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
