package domain

// Feed represents a news feed source, either predefined or user-supplied
type Feed struct {
	Name    string
	URL     string
	Enabled bool
	Logo    string // explicit logo file name, empty means resolve by name
	Custom  bool
}
