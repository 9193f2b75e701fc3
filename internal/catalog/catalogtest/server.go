// Package catalogtest provides an in-process fake of the product search API
// that records every request it receives.
package catalogtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"smartcart/internal/domain"
)

// Request is one recorded call to the fake API.
type Request struct {
	Route    string
	Method   string
	Query    url.Values
	Fields   map[string]string
	File     []byte
	FileName string
	FileType string
	Body     []byte
}

// Server is a fake search API backed by a fixed product list.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request

	// FileField is the multipart field expected to carry the image.
	FileField string
	// Products is served in order; searches return the first k.
	Products []domain.Product
	// Details is served by the product endpoint.
	Details map[int64]domain.ProductDetails
	// ImageBaseURL is published by the config endpoint.
	ImageBaseURL string
	// AnswerFunc answers the chat endpoint. A non-empty errMsg is sent as
	// the error indicator.
	AnswerFunc func(productID int64, question string) (answer, errMsg string)
	// StatusFunc forces a status code for a request when it returns non-zero.
	StatusFunc func(r Request) int
}

// New starts a fake API that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{FileField: "file", Details: map[int64]domain.ProductDetails{}}
	r := chi.NewRouter()
	r.Route("/search", func(r chi.Router) {
		r.Get("/text", s.textSearch)
		r.Post("/image", s.imageSearch)
		r.Post("/hybrid", s.hybridSearch)
		r.Post("/ask-question", s.askQuestion)
	})
	r.Get("/config", s.publicConfig)
	r.Get("/products/{id}", s.product)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Requests returns a copy of the recorded requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Products builds n numbered products.
func Products(n int) []domain.Product {
	out := make([]domain.Product, n)
	for i := range out {
		price := float64(10 * (i + 1))
		out[i] = domain.Product{
			ID:         int64(i + 1),
			Title:      fmt.Sprintf("Product %d", i+1),
			Price:      &price,
			ImageURL:   fmt.Sprintf("/images/p%d.jpg", i+1),
			ProductURL: fmt.Sprintf("https://shop.example/p/%d", i+1),
			Distance:   float64(i) / 10,
		}
	}
	return out
}

func (s *Server) record(route string, r *http.Request) (Request, int) {
	rec := Request{Route: route, Method: r.Method, Query: r.URL.Query(), Fields: map[string]string{}}
	if r.MultipartForm == nil && r.Header.Get("Content-Type") != "" && r.Method == http.MethodPost {
		if err := r.ParseMultipartForm(8 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				if len(v) > 0 {
					rec.Fields[k] = v[0]
				}
			}
			if fhs := r.MultipartForm.File[s.FileField]; len(fhs) > 0 {
				rec.FileName = fhs[0].Filename
				rec.FileType = fhs[0].Header.Get("Content-Type")
				if f, err := fhs[0].Open(); err == nil {
					rec.File, _ = io.ReadAll(f)
					_ = f.Close()
				}
			}
		} else if b, err := io.ReadAll(r.Body); err == nil {
			rec.Body = b
		}
	}
	s.mu.Lock()
	s.requests = append(s.requests, rec)
	s.mu.Unlock()
	return rec, s.forced(rec)
}

func (s *Server) forced(rec Request) int {
	s.mu.Lock()
	fn := s.StatusFunc
	s.mu.Unlock()
	if fn == nil {
		return 0
	}
	return fn(rec)
}

func (s *Server) textSearch(w http.ResponseWriter, r *http.Request) {
	rec, code := s.record("text", r)
	if code != 0 {
		writeDetail(w, code, "forced failure")
		return
	}
	if rec.Query.Get("query") == "" {
		writeDetail(w, http.StatusBadRequest, "Query cannot be empty")
		return
	}
	s.writeTopK(w, rec.Query.Get("k"))
}

func (s *Server) imageSearch(w http.ResponseWriter, r *http.Request) {
	rec, code := s.record("image", r)
	if code != 0 {
		writeDetail(w, code, "forced failure")
		return
	}
	if len(rec.File) == 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "field required: "+s.FileField)
		return
	}
	if rec.FileType != "image/jpeg" && rec.FileType != "image/png" {
		writeDetail(w, http.StatusBadRequest, "Image must be JPG or PNG")
		return
	}
	s.writeTopK(w, rec.Query.Get("k"))
}

func (s *Server) hybridSearch(w http.ResponseWriter, r *http.Request) {
	rec, code := s.record("hybrid", r)
	if code != 0 {
		writeDetail(w, code, "forced failure")
		return
	}
	if len(rec.File) == 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "field required: "+s.FileField)
		return
	}
	if rec.Query.Get("text") == "" && rec.Fields["text"] == "" {
		writeDetail(w, http.StatusBadRequest, "Text is required for hybrid search")
		return
	}
	s.writeTopK(w, rec.Query.Get("k"))
}

func (s *Server) askQuestion(w http.ResponseWriter, r *http.Request) {
	rec := Request{Route: "ask", Method: r.Method, Query: r.URL.Query()}
	rec.Body, _ = io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, rec)
	answer := s.AnswerFunc
	s.mu.Unlock()
	if code := s.forced(rec); code != 0 {
		writeDetail(w, code, "forced failure")
		return
	}
	var in struct {
		ProductID int64  `json:"product_id"`
		Question  string `json:"question"`
	}
	if err := json.Unmarshal(rec.Body, &in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if answer == nil {
		writeJSON(w, http.StatusOK, map[string]string{"answer": "It is a product."})
		return
	}
	a, errMsg := answer(in.ProductID, in.Question)
	if errMsg != "" {
		writeJSON(w, http.StatusOK, map[string]string{"error": errMsg})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": a})
}

func (s *Server) publicConfig(w http.ResponseWriter, r *http.Request) {
	if _, code := s.record("config", r); code != 0 {
		writeDetail(w, code, "forced failure")
		return
	}
	s.mu.Lock()
	base := s.ImageBaseURL
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"image_base_url": base})
}

func (s *Server) product(w http.ResponseWriter, r *http.Request) {
	if _, code := s.record("product", r); code != 0 {
		writeDetail(w, code, "forced failure")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid id")
		return
	}
	s.mu.Lock()
	d, found := s.Details[id]
	s.mu.Unlock()
	if !found {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	// The product endpoint stores the raw image name, not a URL.
	body := map[string]any{
		"id":            d.ID,
		"title":         d.Title,
		"description":   d.Description,
		"price":         d.Price,
		"image":         d.ImageURL,
		"main_category": d.MainCategory,
		"categories":    d.Categories,
		"features":      d.Features,
		"details":       d.Details,
		"product_url":   d.ProductURL,
		"status":        d.Status,
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) writeTopK(w http.ResponseWriter, rawK string) {
	k, err := strconv.Atoi(rawK)
	if err != nil || k <= 0 {
		k = 10
	}
	s.mu.Lock()
	items := s.Products
	s.mu.Unlock()
	if k > len(items) {
		k = len(items)
	}
	out := append([]domain.Product{}, items[:k]...)
	writeJSON(w, http.StatusOK, out)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
