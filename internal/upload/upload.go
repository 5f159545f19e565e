// Package upload validates, downsizes and stores uploaded images.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// Folder is a storage subdirectory under the uploads root.
type Folder string

const (
	FolderProducts    Folder = "products"
	FolderCategories  Folder = "categories"
	FolderCollections Folder = "collections"
	FolderUsers       Folder = "users"
	FolderTemp        Folder = "temp"
)

// Folders lists every storage subdirectory.
var Folders = []Folder{FolderProducts, FolderCategories, FolderCollections, FolderUsers, FolderTemp}

// Valid reports whether f is a known folder.
func (f Folder) Valid() bool {
	for _, known := range Folders {
		if f == known {
			return true
		}
	}
	return false
}

// MaxFiles is the largest batch accepted by SaveMany.
const MaxFiles = 10

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// storedExt maps a sniffed image type to the extension an unoptimized file
// is stored with. Anything else is never written to disk.
var storedExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var (
	ErrNoFile        = apperr.BadRequest("No file provided")
	ErrNoFiles       = apperr.BadRequest("No files provided")
	ErrTooManyFiles  = apperr.BadRequest(fmt.Sprintf("Too many files. Maximum is %d", MaxFiles))
	ErrInvalidType   = apperr.BadRequest("Invalid file type. Allowed types: image/jpeg, image/jpg, image/png, image/gif, image/webp")
	ErrInvalidPath   = apperr.BadRequest("Invalid file path")
	ErrTooManyPixels = apperr.BadRequest("Image dimensions too large")
)

// File is an uploaded file held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result describes a stored file.
type Result struct {
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Optimized bool   `json:"optimized"`
}

type Config struct {
	Root         string
	MaxSize      int64
	MaxDimension int
	// MaxPixels caps width×height of an image before it is decoded.
	MaxPixels    int
	Quality      int
	PublicPrefix string
}

// Service stores images on the local filesystem.
type Service struct {
	cfg Config
}

// New creates the root and folder directories.
func New(cfg Config) (*Service, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 2 << 20
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = 1200
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = 25_000_000
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 85
	}
	if cfg.PublicPrefix == "" {
		cfg.PublicPrefix = "/uploads"
	}
	cfg.PublicPrefix = "/" + strings.Trim(cfg.PublicPrefix, "/")
	for _, f := range Folders {
		if err := os.MkdirAll(filepath.Join(cfg.Root, string(f)), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", f)
		}
	}
	return &Service{cfg: cfg}, nil
}

// Root returns the uploads directory.
func (s *Service) Root() string { return s.cfg.Root }

// PublicPrefix returns the URL prefix files are served under.
func (s *Service) PublicPrefix() string { return s.cfg.PublicPrefix }

// MaxSize returns the largest accepted file size in bytes.
func (s *Service) MaxSize() int64 { return s.cfg.MaxSize }

// Save validates f, downsizes it and writes it under folder. The declared
// content type and the sniffed one must both be allowed image types. When the
// image cannot be decoded or re-encoded the original bytes are stored with
// the extension of the sniffed type.
func (s *Service) Save(ctx context.Context, f File, folder Folder) (*Result, error) {
	if len(f.Data) == 0 {
		return nil, ErrNoFile
	}
	if !folder.Valid() {
		folder = FolderTemp
	}
	if int64(len(f.Data)) > s.cfg.MaxSize {
		return nil, apperr.BadRequest(fmt.Sprintf("File size too large. Maximum size is %gMB",
			float64(s.cfg.MaxSize)/1024/1024))
	}
	if !allowedTypes[strings.ToLower(f.ContentType)] {
		return nil, ErrInvalidType
	}
	ext, ok := storedExt[http.DetectContentType(f.Data)]
	if !ok {
		return nil, ErrInvalidType
	}

	id := uuid.NewString()
	res := &Result{}
	data, w, h, err := s.optimize(f.Data)
	switch {
	case errors.Is(err, ErrTooManyPixels):
		return nil, err
	case err != nil:
		zctx.From(ctx).Warn("Image optimization failed, saving original",
			zap.String("name", f.Name),
			zap.Error(err),
		)
		data = f.Data
		res.Filename = id + ext
	default:
		res.Filename = id + ".jpg"
		res.Width, res.Height = w, h
		res.Optimized = true
	}

	dst := filepath.Join(s.cfg.Root, string(folder), res.Filename)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return nil, errors.Wrap(err, "write file")
	}
	res.Size = int64(len(data))
	res.URL = path.Join(s.cfg.PublicPrefix, string(folder), res.Filename)
	return res, nil
}

// SaveMany stores up to MaxFiles files. Nothing is kept when one fails.
func (s *Service) SaveMany(ctx context.Context, files []File, folder Folder) ([]Result, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > MaxFiles {
		return nil, ErrTooManyFiles
	}
	out := make([]Result, 0, len(files))
	for _, f := range files {
		res, err := s.Save(ctx, f, folder)
		if err != nil {
			for _, saved := range out {
				_, _ = s.Delete(saved.URL)
			}
			return nil, err
		}
		out = append(out, *res)
	}
	return out, nil
}

// Delete removes the file at a public URL or a root-relative path. Paths
// escaping the root are rejected. It reports whether a file was removed.
func (s *Service) Delete(p string) (bool, error) {
	rel := strings.TrimPrefix(p, s.cfg.PublicPrefix)
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if rel == "" || rel == "." {
		return false, ErrInvalidPath
	}
	full := filepath.Join(s.cfg.Root, filepath.FromSlash(rel))
	check, err := filepath.Rel(s.cfg.Root, full)
	if err != nil || check == ".." || strings.HasPrefix(check, ".."+string(filepath.Separator)) {
		return false, ErrInvalidPath
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "remove file")
	}
	return true, nil
}

// optimize fits the image into MaxDimension without upscaling, flattens
// transparency onto white and encodes it as JPEG. The header is checked
// against MaxPixels before the raster is allocated.
func (s *Service) optimize(data []byte) ([]byte, int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, errors.Wrap(err, "decode config")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, 0, 0, errors.New("empty image")
	}
	if cfg.Height > s.cfg.MaxPixels/cfg.Width {
		return nil, 0, 0, ErrTooManyPixels
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, errors.Wrap(err, "decode")
	}
	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy(), s.cfg.MaxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: s.cfg.Quality}); err != nil {
		return nil, 0, 0, errors.Wrap(err, "encode")
	}
	return buf.Bytes(), w, h, nil
}

// fit scales w×h to fit inside limit×limit keeping the aspect ratio. Images
// that already fit are left unchanged.
func fit(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
