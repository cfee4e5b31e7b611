package descriptions

// Tool descriptions with practical examples and use cases

const (
	PDFFillDescription = `Fill a PDF template with field values and write the result.

**When to use:** You have a PDF form or any template PDF and a list of field placements (page, position, size, value) to draw onto it.

**Field data:** A JSON array passed in "fields", or a JSON/YAML file passed in "fields_file". Each entry:
  {"field_id": "name", "page": 0, "x": 50, "y": 700, "width": 200, "height": 20,
   "field_type": "text", "value": "Jane Doe"}
Coordinates are points with the origin at the top-left corner of the page.

**Field types:** text, number, date, checkbox (boolean value), radio, dropdown, image and signature.
Image and signature values are a base64 string or {"url": "...", "method": "GET", "headers": {...}}.

**Options per field:** font_size, alignment (left|center|right), vertical_alignment (top|middle|bottom|baseline),
fit_mode for images (fill|contain|cover|scaledown), text_overflow (overflow|cutoff).

**Template:** A path inside the working directory, an http(s) URL, or a JSON request descriptor
{"url": "...", "method": "POST", "headers": {...}, "body": {...}}. Set use_cache to reuse downloaded templates.

**Result:** The filled PDF is written to "output". Field problems (missing pages, unreachable images) do not fail the call;
they are listed as warnings and errors in the response and in the optional metadata file.`

	PDFPageInfoDescription = `Report the number of pages and the size of every page of a PDF template.

**When to use:** Before placing fields, to learn page dimensions in points (e.g. 595 x 842 for A4, 612 x 792 for Letter).

**Examples:**
• "How big are the pages of application-form.pdf?"
• "How many pages does https://example.com/form.pdf have?"`

	PDFCacheClearDescription = `Remove every template from the template cache.

**When to use:** A cached remote template is known to be outdated and the server does not support revalidation,
or the cache should simply be emptied.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"pdf_fill":        PDFFillDescription,
	"pdf_page_info":   PDFPageInfoDescription,
	"pdf_cache_clear": PDFCacheClearDescription,
}

// GetToolDescription returns the description for a tool, or an empty string if unknown
func GetToolDescription(toolName string) string {
	return ToolDescriptions[toolName]
}
