package extraction

import (
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/cmplx"
	"time"

	"github.com/golang/glog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/floats"

	"github.com/hb9tf/radarlog/export"
)

var (
	// Colors defining the gradient in the heatmap. The higher the index, the warmer.
	colors = []color.RGBA{
		{0, 0, 0, 255},       // black
		{0, 0, 255, 255},     // blue
		{0, 255, 255, 255},   // cyan
		{0, 255, 0, 255},     // green
		{255, 255, 0, 255},   // yellow
		{255, 0, 0, 255},     // red
		{255, 255, 255, 255}, // white
	}

	gridColor           = color.RGBA{0, 0, 0, 255}       // black
	gridBackgroundColor = color.RGBA{255, 255, 255, 255} // white

	// ErrNoData is returned when the filter matched no frames.
	ErrNoData = errors.New("no frames to render")
)

const (
	timeFmt        = "2006-01-02T15:04:05"
	gridMarginTop  = 20  // pixels
	gridMarginLeft = 150 // pixels
	gridTickLen    = 10  // pixel
	gridMinStepX   = 100 // pixels
	gridMinStepY   = 20  // pixels

	getFramesTmpl = `SELECT
			Identifier,
			Source,
			Mode,
			Seq,
			Time,
			Data
		FROM
			frames
		WHERE
			Identifier LIKE ?
			AND Mode LIKE ?
			AND Time >= ?
			AND Time <= ?
		ORDER BY
			Time ASC,
			Seq ASC;`
)

// Filter selects the frames to read. Empty strings and zero times match
// everything.
type Filter struct {
	Identifier string
	Mode       string
	StartTime  time.Time
	EndTime    time.Time
}

// ReadRecords loads the matching frames in acquisition order.
func ReadRecords(db *sql.DB, f *Filter) ([]export.Record, error) {
	identifier, mode := "%", "%"
	start, end := int64(0), int64(math.MaxInt64)
	if f != nil {
		if f.Identifier != "" {
			identifier = f.Identifier
		}
		if f.Mode != "" {
			mode = f.Mode
		}
		if !f.StartTime.IsZero() {
			start = f.StartTime.UnixMilli()
		}
		if !f.EndTime.IsZero() {
			end = f.EndTime.UnixMilli()
		}
	}

	statement, err := db.Prepare(getFramesTmpl)
	if err != nil {
		return nil, err
	}
	defer statement.Close()
	rows, err := statement.Query(identifier, mode, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []export.Record
	for rows.Next() {
		var r export.Record
		var seq int64
		var data string
		if err := rows.Scan(&r.Identifier, &r.Source, &r.Mode, &seq, &r.Time, &data); err != nil {
			return nil, fmt.Errorf("unable to read frame from DB: %w", err)
		}
		r.Seq = uint64(seq)
		if err := r.SetData(data); err != nil {
			glog.Warningf("skipping frame %d of run %s: %s\n", r.Seq, r.Identifier, err)
			continue
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetColor determines the color of a pixel based on a color gradient and a pixel "level".
// http://www.andrewnoske.com/wiki/Code_-_heatmaps_and_color_gradients
func GetColor(lvl uint16) color.RGBA {
	// Find the two gradient colors the level lies between and interpolate.
	pos := float64(lvl) / math.MaxUint16 * float64(len(colors)-1)
	i := int(pos)
	if i >= len(colors)-1 {
		return colors[len(colors)-1]
	}
	fract := pos - float64(i)
	lerp := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*fract)
	}
	prevC, nextC := colors[i], colors[i+1]
	return color.RGBA{
		lerp(prevC.R, nextC.R),
		lerp(prevC.G, nextC.G),
		lerp(prevC.B, nextC.B),
		lerp(prevC.A, nextC.A),
	}
}

// GetReadableDistance formats a distance in meters, switching to
// millimeters below one meter.
func GetReadableDistance(m float64) string {
	if math.Abs(m) < 1 {
		return fmt.Sprintf("%.0f mm", m*1000)
	}
	return fmt.Sprintf("%.2f m", m)
}

func drawTick(canvas *image.RGBA, start image.Point, length int, horizontal bool) {
	for i := 0; i <= length; i++ {
		if horizontal {
			canvas.SetRGBA(start.X+i, start.Y, gridColor)
		} else {
			canvas.SetRGBA(start.X, start.Y+i, gridColor)
		}
	}
}

func findGridStepSize(step int, horizontal bool) int {
	gridMinStep := gridMinStepY
	if horizontal {
		gridMinStep = gridMinStepX
	}
	for step > gridMinStep {
		n := step / 2
		if n < gridMinStep {
			return step
		}
		step = n
	}
	return step
}

func label(canvas *image.RGBA, x, y int, text string) {
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(gridColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// DrawGrid returns a copy of source with distance ticks along the top and
// time ticks along the left edge.
func DrawGrid(source *image.RGBA, startM, endM float64, startTime, endTime time.Time) *image.RGBA {
	// Enlarge existing image.
	b := source.Bounds()
	canvas := image.NewRGBA(image.Rect(b.Min.X, b.Min.Y, b.Max.X+gridMarginLeft, b.Max.Y+gridMarginTop))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{gridBackgroundColor}, canvas.Bounds().Min, draw.Src)
	r := canvas.Bounds()
	r.Min.X += gridMarginLeft
	r.Min.Y += gridMarginTop
	draw.Draw(canvas, r, source, b.Min, draw.Src)

	origin := canvas.Bounds().Min

	// Distance ticks.
	xStep := findGridStepSize(b.Dx(), true)
	for i := 0; i < b.Dx(); i += xStep {
		drawTick(canvas, image.Pt(origin.X+gridMarginLeft+i, origin.Y+gridMarginTop-gridTickLen), gridTickLen, false)
		m := startM + float64(i)*(endM-startM)/float64(b.Dx())
		label(canvas, origin.X+gridMarginLeft+i+5, origin.Y+gridMarginTop-2, GetReadableDistance(m))
	}

	// Time ticks.
	yStep := findGridStepSize(b.Dy(), false)
	for i := 0; i < b.Dy(); i += yStep {
		drawTick(canvas, image.Pt(origin.X+gridMarginLeft-gridTickLen, origin.Y+gridMarginTop+i), gridTickLen, true)
		dur := time.Duration(int64(i)*endTime.Sub(startTime).Milliseconds()/int64(b.Dy())) * time.Millisecond
		label(canvas, origin.X+5, origin.Y+gridMarginTop+i+5, dur.String())
		label(canvas, origin.X+5, origin.Y+gridMarginTop+i+17, startTime.Add(dur).Format(timeFmt))
	}

	return canvas
}

type ImageOptions struct {
	// Height and Width cap the image size. Zero uses one pixel per frame
	// and per sample.
	Height int
	Width  int

	AddGrid bool
	// StartM and EndM are the measured range, used for grid labels.
	StartM float64
	EndM   float64
}

type SourceMetadata struct {
	Frames      int
	FrameLength int
	StartTime   time.Time
	EndTime     time.Time
	MinLevel    float64
	MaxLevel    float64
}

type RenderMetadata struct {
	ImageHeight    int
	ImageWidth     int
	MetersPerPixel float64
	SecPerPixel    float64
}

type RenderResult struct {
	Image image.Image

	SourceMeta *SourceMetadata
	ImageMeta  *RenderMetadata
}

// level is the value a frame element contributes to the waterfall. IQ
// samples use their magnitude.
func level(r *export.Record, j int) float64 {
	if len(r.IQ) > 0 {
		return cmplx.Abs(complex(float64(r.IQ[j][0]), float64(r.IQ[j][1])))
	}
	return float64(r.Amplitudes[j])
}

// Render draws records as a waterfall: one row per frame (oldest at the
// top) and one column per frame element. When the image is smaller than
// the data, each pixel shows the maximum of the elements it covers.
func Render(records []export.Record, opts *ImageOptions) (*RenderResult, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}
	if opts == nil {
		opts = &ImageOptions{}
	}
	frameLen := 0
	for i := range records {
		if n := records[i].Len(); n > frameLen {
			frameLen = n
		}
	}
	if frameLen == 0 {
		return nil, ErrNoData
	}

	height := opts.Height
	switch {
	case height <= 0:
		height = len(records)
	case height > len(records):
		glog.Warningf("image height %d is more than the data can provide. Reducing image height to %d pixels\n", height, len(records))
		height = len(records)
	}
	width := opts.Width
	switch {
	case width <= 0:
		width = frameLen
	case width > frameLen:
		glog.Warningf("image width %d is more than the data can provide. Reducing image width to %d pixels\n", width, frameLen)
		width = frameLen
	}

	pixels := make([]float64, height*width)
	seen := make([]bool, height*width)
	for i := range records {
		row := i * height / len(records)
		n := records[i].Len()
		for j := 0; j < n; j++ {
			idx := row*width + j*width/n
			v := level(&records[i], j)
			if !seen[idx] || v > pixels[idx] {
				pixels[idx] = v
				seen[idx] = true
			}
		}
	}

	set := make([]float64, 0, len(pixels))
	for idx, ok := range seen {
		if ok {
			set = append(set, pixels[idx])
		}
	}
	lo, hi := floats.Min(set), floats.Max(set)
	// Normalise to [0, MaxUint16].
	floats.AddConst(-lo, pixels)
	if hi > lo {
		floats.Scale(math.MaxUint16/(hi-lo), pixels)
	} else {
		floats.Scale(0, pixels)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	for idx, ok := range seen {
		if !ok {
			continue
		}
		canvas.SetRGBA(idx%width, idx/width, GetColor(uint16(math.Round(math.Min(pixels[idx], math.MaxUint16)))))
	}

	sTime := time.UnixMilli(records[0].Time)
	eTime := time.UnixMilli(records[len(records)-1].Time)
	if opts.AddGrid {
		canvas = DrawGrid(canvas, opts.StartM, opts.EndM, sTime, eTime)
	}

	return &RenderResult{
		Image: canvas,
		SourceMeta: &SourceMetadata{
			Frames:      len(records),
			FrameLength: frameLen,
			StartTime:   sTime,
			EndTime:     eTime,
			MinLevel:    lo,
			MaxLevel:    hi,
		},
		ImageMeta: &RenderMetadata{
			ImageHeight:    height,
			ImageWidth:     width,
			MetersPerPixel: (opts.EndM - opts.StartM) / float64(width),
			SecPerPixel:    eTime.Sub(sTime).Seconds() / float64(height),
		},
	}, nil
}
