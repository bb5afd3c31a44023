package model

// Tool is a catalog entry for one processing tool.
type Tool struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Operation   Operation `json:"-"`
	Credits     int       `json:"credits"`
}

// Tools is the image tool catalog. Credits are charged per file.
var Tools = []Tool{
	{
		ID:          "compress-image",
		Name:        "Compress Image",
		Description: "Reduce image file size while keeping the best possible quality.",
		Operation:   OpCompress,
		Credits:     2,
	},
	{
		ID:          "convert-image",
		Name:        "Convert Image",
		Description: "Convert images between JPEG, PNG, WebP, GIF and BMP formats.",
		Operation:   OpConvert,
		Credits:     2,
	},
	{
		ID:          "resize-image",
		Name:        "Resize Image",
		Description: "Resize images by exact dimensions, percentage or preset.",
		Operation:   OpResize,
		Credits:     2,
	},
	{
		ID:          "crop-image",
		Name:        "Crop Image",
		Description: "Cut out a rectangular region of an image.",
		Operation:   OpCrop,
		Credits:     2,
	},
	{
		ID:          "rotate-image",
		Name:        "Rotate Image",
		Description: "Rotate images by any angle without clipping.",
		Operation:   OpRotate,
		Credits:     2,
	},
	{
		ID:          "watermark-image",
		Name:        "Watermark Image",
		Description: "Overlay text watermarks on your images.",
		Operation:   OpWatermark,
		Credits:     2,
	},
}

// ToolByID looks up a catalog entry.
func ToolByID(id string) (Tool, bool) {
	for _, t := range Tools {
		if t.ID == id {
			return t, true
		}
	}
	return Tool{}, false
}

// ToolCosts returns the toolId -> credit cost table.
func ToolCosts() map[string]int {
	costs := make(map[string]int, len(Tools))
	for _, t := range Tools {
		costs[t.ID] = t.Credits
	}
	return costs
}

// ResizePreset is a named target size offered by the resize/convert tools.
type ResizePreset struct {
	Name   string
	Width  int
	Height int
}

// ResizePresets maps preset keys to their dimensions.
var ResizePresets = map[string]ResizePreset{
	"hd":               {Name: "HD 720p", Width: 1280, Height: 720},
	"fullhd":           {Name: "Full HD 1080p", Width: 1920, Height: 1080},
	"4k":               {Name: "4K", Width: 3840, Height: 2160},
	"instagram-square": {Name: "Instagram Square", Width: 1080, Height: 1080},
	"twitter-header":   {Name: "Twitter Header", Width: 1500, Height: 500},
}
