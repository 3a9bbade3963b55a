package httpserver

import (
	"net/http"
	"strconv"
	"time"
)

// TransparentPixel is a 1x1 transparent GIF, the smallest well-formed image
// a storefront can request cross-origin without CORS ceremony.
var TransparentPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, // GIF89a
	0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00,
	0x2C, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
	0x02, 0x02, 0x44, 0x01, 0x00, 0x3B,
}

// Fixed header values that keep every client and proxy from caching the
// pixel: an Expires far in the past, a stale Last-Modified and an absurd
// Age, so repeat page views always re-request the beacon.
var (
	pixelExpires      = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)
	pixelLastModified = time.Date(1991, time.January, 1, 0, 0, 0, 0, time.UTC)
)

const pixelAge = 2141853

// WritePixel writes the tracking pixel response.
func WritePixel(w http.ResponseWriter, now time.Time) {
	h := w.Header()
	h.Set("Content-Type", "image/gif")
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", pixelExpires.Format(http.TimeFormat))
	h.Set("Date", now.UTC().Format(http.TimeFormat))
	h.Set("Last-Modified", pixelLastModified.Format(http.TimeFormat))
	h.Set("Age", strconv.Itoa(pixelAge))

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(TransparentPixel)
}
