package bundle

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/egannguyen/storefront/internal/entity"
)

// ImageDeriver produces the image of a single piece of a combo product.
// Implementations must return baseURL unchanged when they cannot handle it.
type ImageDeriver interface {
	DeriveComponentImage(baseURL string, slot entity.Slot) string
}

// DeriverFunc adapts a function to ImageDeriver.
type DeriverFunc func(baseURL string, slot entity.Slot) string

func (f DeriverFunc) DeriveComponentImage(baseURL string, slot entity.Slot) string {
	return f(baseURL, slot)
}

// DefaultCloudinaryHost is the delivery host of Cloudinary image URLs.
const DefaultCloudinaryHost = "res.cloudinary.com"

// Crop transformations. The earring offset is tuned to the catalog photography:
// earrings sit above and to the right of centre in the combo shots.
const (
	pieceTransform   = "c_fill,g_center,w_600,h_600,q_auto,f_auto"
	earringTransform = "c_crop,g_center,x_140,y_-110,w_380,h_380/c_fill,w_600,h_600,q_auto,f_auto"
)

// transformParam matches one Cloudinary transformation parameter, e.g. w_400.
const transformParam = `(?:a|ar|b|bo|c|co|d|dpr|e|f|fl|g|h|l|o|q|r|t|u|w|x|y|z)_[^,/]+`

var (
	versionSegment   = regexp.MustCompile(`^v\d+$`)
	transformSegment = regexp.MustCompile(`^` + transformParam + `(?:,` + transformParam + `)*$`)
)

// CloudinaryDeriver rewrites Cloudinary upload URLs so each slot points at a
// cropped asset of its own piece:
//
//	collar, anillo  <folder>/<name>        (the base shot frames these pieces)
//	dije            <folder>/<name>-dije
//	arete           <folder>/<name>-arete  (offset crop)
type CloudinaryDeriver struct {
	Host string
}

// NewCloudinaryDeriver returns a deriver for DefaultCloudinaryHost.
func NewCloudinaryDeriver() CloudinaryDeriver {
	return CloudinaryDeriver{Host: DefaultCloudinaryHost}
}

func (d CloudinaryDeriver) DeriveComponentImage(baseURL string, slot entity.Slot) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host != d.host() {
		return baseURL
	}

	// /<cloud>/image/upload/[transformations/][v123/]<folder>/<file>.<ext>
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 4 || segments[1] != "image" || segments[2] != "upload" {
		return baseURL
	}
	cloud, rest := segments[0], segments[3:]
	for len(rest) > 1 && transformSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}
	if len(rest) > 1 && versionSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}

	file := rest[len(rest)-1]
	name := strings.TrimSuffix(file, path.Ext(file))
	if name == "" {
		return baseURL
	}

	transform := pieceTransform
	switch slot {
	case entity.SlotCollar, entity.SlotAnillo:
	case entity.SlotDije:
		name += "-dije"
	case entity.SlotArete:
		name += "-arete"
		transform = earringTransform
	default:
		return baseURL
	}

	parts := []string{cloud, "image", "upload", transform}
	parts = append(parts, rest[:len(rest)-1]...)
	parts = append(parts, name)

	out := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/" + strings.Join(parts, "/")}
	return out.String()
}

func (d CloudinaryDeriver) host() string {
	if d.Host == "" {
		return DefaultCloudinaryHost
	}
	return d.Host
}
