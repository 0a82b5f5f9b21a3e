package excel

// ReaderConfig holds configuration for parsing uploaded tables
type ReaderConfig struct {
	// Comma is the CSV field delimiter
	Comma rune `json:"comma"`
	// Sheet selects the spreadsheet tab; empty means the first sheet
	Sheet string `json:"sheet"`
	// MaxRows limits the number of data rows accepted; 0 means unlimited
	MaxRows int `json:"max_rows"`
}

// DefaultReaderConfig returns sensible defaults for upload parsing
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Comma: ',',
	}
}
