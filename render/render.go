package main

/*
This application renders waterfalls for frames collected with radarlog
into a sqlite DB (--export sqlite, or the collector server).
*/

import (
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/hb9tf/radarlog/export"
	"github.com/hb9tf/radarlog/extraction"
	"github.com/hb9tf/radarlog/sensor"
)

// Flags
var (
	sqliteFile   = flag.String("sqliteFile", "/tmp/radarlog.db", "File path of the sqlite DB file to use.")
	identifier   = flag.String("identifier", "", "Select frames of this run (SQL LIKE pattern). Empty selects all runs.")
	mode         = flag.String("mode", "", "Select frames of this service type (power_bin, envelope or iq). Empty selects all.")
	startTimeRaw = flag.String("startTime", "", "Select frames collected after this time. Format: 2006-01-02T15:04:05")
	endTimeRaw   = flag.String("endTime", "", "Select frames collected before this time. Format: 2006-01-02T15:04:05")
	rangeStart   = flag.Float64("rangeStart", sensor.DefaultStartM, "Start of the measured range in meters, used for grid labels.")
	rangeEnd     = flag.Float64("rangeEnd", sensor.DefaultEndM, "End of the measured range in meters, used for grid labels.")
	imgPath      = flag.String("imgPath", "/tmp/out.png", "Path where the rendered image should be written to (.png or .jpg).")
	imgWidth     = flag.Int("imgWidth", 0, "Maximum width of output image in pixels. 0 renders one pixel per sample.")
	imgHeight    = flag.Int("imgHeight", 0, "Maximum height of output image in pixels. 0 renders one pixel per frame.")
	addGrid      = flag.Bool("grid", true, "Draw distance and time labels around the waterfall.")
)

const timeFmt = "2006-01-02T15:04:05"

func parseTime(name, raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFmt, raw)
	if err != nil {
		glog.Exitf("unable to parse %s (value: %q, format: %q): %s", name, raw, timeFmt, err)
	}
	return t
}

func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(f, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpeg.DefaultQuality})
	default:
		err = fmt.Errorf("unsupported image format %q, use .png or .jpg", filepath.Ext(path))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()
	defer glog.Flush()

	filter := &extraction.Filter{
		Identifier: *identifier,
		Mode:       *mode,
		StartTime:  parseTime("startTime", *startTimeRaw),
		EndTime:    parseTime("endTime", *endTimeRaw),
	}

	db, err := export.OpenSQLite(*sqliteFile)
	if err != nil {
		glog.Exit(err)
	}
	defer db.Close()

	records, err := extraction.ReadRecords(db, filter)
	if err != nil {
		glog.Exitf("unable to read frames from %q: %s", *sqliteFile, err)
	}
	res, err := extraction.Render(records, &extraction.ImageOptions{
		Height:  *imgHeight,
		Width:   *imgWidth,
		AddGrid: *addGrid,
		StartM:  *rangeStart,
		EndM:    *rangeEnd,
	})
	if err != nil {
		glog.Exit(err)
	}

	fmt.Println("Selected source metadata:")
	fmt.Printf("  - Frames: %d of %d elements\n", res.SourceMeta.Frames, res.SourceMeta.FrameLength)
	fmt.Printf("  - Range: %s - %s\n", extraction.GetReadableDistance(*rangeStart), extraction.GetReadableDistance(*rangeEnd))
	fmt.Printf("  - Start time: %s (%d)\n", res.SourceMeta.StartTime.Format(timeFmt), res.SourceMeta.StartTime.Unix())
	fmt.Printf("  - End time: %s (%d)\n", res.SourceMeta.EndTime.Format(timeFmt), res.SourceMeta.EndTime.Unix())
	fmt.Printf("  - Duration: %s\n", res.SourceMeta.EndTime.Sub(res.SourceMeta.StartTime))
	fmt.Printf("  - Levels: %.2f - %.2f\n", res.SourceMeta.MinLevel, res.SourceMeta.MaxLevel)
	fmt.Printf("Rendered image (%d x %d, %.2f mm/px, %.3f s/px)\n", res.ImageMeta.ImageWidth, res.ImageMeta.ImageHeight, res.ImageMeta.MetersPerPixel*1000, res.ImageMeta.SecPerPixel)

	fmt.Printf("Writing image to %q\n", *imgPath)
	if err := writeImage(*imgPath, res.Image); err != nil {
		glog.Exitf("unable to write image: %s", err)
	}
}
