package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/upload"
)

const multipartMemory = 8 << 20

var (
	errProductIDRequired    = apperr.BadRequest("Product ID is required")
	errCategoryIDRequired   = apperr.BadRequest("Category ID is required")
	errCollectionIDRequired = apperr.BadRequest("Collection ID is required")
	errPathRequired         = apperr.BadRequest("File path is required")
	errUploadTooLarge       = apperr.BadRequest("Request body too large")
)

type uploadResponse struct {
	Message string `json:"message"`
	upload.Result
}

type uploadsResponse struct {
	Message string          `json:"message"`
	Files   []upload.Result `json:"files"`
	URLs    []string        `json:"urls"`
}

type productImageResponse struct {
	uploadResponse
	Image *product.Image `json:"image,omitempty"`
}

type productImagesResponse struct {
	Message string          `json:"message"`
	Files   []upload.Result `json:"files"`
	Images  []product.Image `json:"images"`
}

type deleteResponse struct {
	Message string `json:"message"`
	Deleted bool   `json:"deleted"`
}

// parseMultipart bounds the body to MaxFiles files of MaxSize and parses it.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	limit := h.Uploads.MaxSize()*upload.MaxFiles + multipartMemory
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errUploadTooLarge
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return upload.ErrNoFile
		}
		return apperr.BadRequest("Invalid multipart form")
	}
	return nil
}

func readFile(fh *multipart.FileHeader) (upload.File, error) {
	f, err := fh.Open()
	if err != nil {
		return upload.File{}, errors.Wrap(err, "open upload")
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return upload.File{}, errors.Wrap(err, "read upload")
	}
	return upload.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *Handler) formFile(w http.ResponseWriter, r *http.Request) (upload.File, error) {
	if err := h.parseMultipart(w, r); err != nil {
		return upload.File{}, err
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		return upload.File{}, upload.ErrNoFile
	}
	return readFile(headers[0])
}

func (h *Handler) formFiles(w http.ResponseWriter, r *http.Request) ([]upload.File, error) {
	if err := h.parseMultipart(w, r); err != nil {
		if errors.Is(err, upload.ErrNoFile) {
			return nil, upload.ErrNoFiles
		}
		return nil, err
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, upload.ErrNoFiles
	}
	if len(headers) > upload.MaxFiles {
		return nil, upload.ErrTooManyFiles
	}
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// saveOne stores the "file" field under folder.
func (h *Handler) saveOne(w http.ResponseWriter, r *http.Request, folder upload.Folder) (*upload.Result, error) {
	f, err := h.formFile(w, r)
	if err != nil {
		return nil, err
	}
	return h.Uploads.Save(r.Context(), f, folder)
}

func urls(results []upload.Result) []string {
	out := make([]string, len(results))
	for i, res := range results {
		out[i] = res.URL
	}
	return out
}

func (h *Handler) uploadSingle(w http.ResponseWriter, r *http.Request) {
	f, err := h.formFile(w, r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	res, err := h.Uploads.Save(r.Context(), f, upload.Folder(r.FormValue("folder")))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, uploadResponse{Message: "File uploaded successfully", Result: *res})
}

func (h *Handler) uploadMultiple(w http.ResponseWriter, r *http.Request) {
	files, err := h.formFiles(w, r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	results, err := h.Uploads.SaveMany(r.Context(), files, upload.Folder(r.FormValue("folder")))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, uploadsResponse{
		Message: "Files uploaded successfully",
		Files:   results,
		URLs:    urls(results),
	})
}

// uploadProductImage stores the file and, when productId is given, attaches
// it to the product with the optional color and isMain flag.
func (h *Handler) uploadProductImage(w http.ResponseWriter, r *http.Request) {
	res, err := h.saveOne(w, r, upload.FolderProducts)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	resp := productImageResponse{
		uploadResponse: uploadResponse{Message: "Product image uploaded successfully", Result: *res},
	}
	if productID := strings.TrimSpace(r.FormValue("productId")); productID != "" {
		in := product.ImageInput{URL: res.URL, IsMain: r.FormValue("isMain") == "true"}
		if color := strings.TrimSpace(r.FormValue("color")); color != "" {
			in.Color = &color
		}
		img, err := h.Products.AddImage(r.Context(), productID, in)
		if err != nil {
			_, _ = h.Uploads.Delete(res.URL)
			WriteError(w, r, err)
			return
		}
		resp.Image = img
	}
	writeJSON(w, r, http.StatusCreated, resp)
}

// uploadProductImages stores the files and attaches them in order. The first
// image is the main one. colors is a comma list matched by position; a single
// color applies to every image.
func (h *Handler) uploadProductImages(w http.ResponseWriter, r *http.Request) {
	files, err := h.formFiles(w, r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	productID := strings.TrimSpace(r.FormValue("productId"))
	if productID == "" {
		WriteError(w, r, errProductIDRequired)
		return
	}
	results, err := h.Uploads.SaveMany(r.Context(), files, upload.FolderProducts)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	colors := splitColors(r.FormValue("colors"))
	if len(colors) == 0 {
		colors = splitColors(r.FormValue("color"))
	}
	in := make([]product.ImageInput, len(results))
	for i, res := range results {
		order := i
		in[i] = product.ImageInput{URL: res.URL, IsMain: i == 0, Order: &order}
		switch {
		case len(colors) == 1:
			in[i].Color = &colors[0]
		case i < len(colors) && colors[i] != "":
			in[i].Color = &colors[i]
		}
	}
	images, err := h.Products.AddImages(r.Context(), productID, in)
	if err != nil {
		for _, res := range results {
			_, _ = h.Uploads.Delete(res.URL)
		}
		WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, productImagesResponse{
		Message: "Product images uploaded and saved successfully",
		Files:   results,
		Images:  images,
	})
}

func splitColors(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (h *Handler) uploadCategoryImage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("categoryId"))
	if id == "" {
		WriteError(w, r, errCategoryIDRequired)
		return
	}
	res, err := h.saveOne(w, r, upload.FolderCategories)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	c, err := h.Categories.SetImage(r.Context(), id, res.URL)
	if err != nil {
		_, _ = h.Uploads.Delete(res.URL)
	}
	created(w, r, c, err)
}

func (h *Handler) uploadCollectionImage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("collectionId"))
	if id == "" {
		WriteError(w, r, errCollectionIDRequired)
		return
	}
	res, err := h.saveOne(w, r, upload.FolderCollections)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	c, err := h.Collections.SetImage(r.Context(), id, res.URL)
	if err != nil {
		_, _ = h.Uploads.Delete(res.URL)
	}
	created(w, r, c, err)
}

func (h *Handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	res, err := h.saveOne(w, r, upload.FolderUsers)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	u, err := h.Users.UpdateAvatar(r.Context(), id.UserID, res.URL)
	if err != nil {
		_, _ = h.Uploads.Delete(res.URL)
	}
	created(w, r, u, err)
}

func (h *Handler) deleteUpload(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimSpace(r.URL.Query().Get("path"))
	if p == "" {
		WriteError(w, r, errPathRequired)
		return
	}
	deleted, err := h.Uploads.Delete(p)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	msg := "File not found"
	if deleted {
		msg = "File deleted successfully"
	}
	writeJSON(w, r, http.StatusOK, deleteResponse{Message: msg, Deleted: deleted})
}
