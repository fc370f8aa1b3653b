package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/docvault/go-docvault/internal/models"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/repositories"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
)

// fileDocument 写入索引的文件文档，只保留检索需要的字段
type fileDocument struct {
	FileID           uint64   `json:"file_id"`
	FileName         string   `json:"filename"`
	OriginalFileName string   `json:"original_filename"`
	Path             string   `json:"path"`
	Description      string   `json:"description"`
	Tags             []string `json:"tags"`
	MimeType         string   `json:"mime_type"`
	ApprovalStatus   string   `json:"approval_status"`
	IsCurrentVersion bool     `json:"is_current_version"`
}

// VisibilityGate 判断一个文件对调用者是否可见
// 检索跨越文件夹边界，每条命中都要单独过这道门
type VisibilityGate interface {
	FileVisible(userID uint64, role string, file *models.File) bool
}

// Service 文件全文检索
// Elasticsearch 未配置或不可用时退化为数据库 LIKE 查询，检索永远可用只是质量下降
type Service struct {
	es       *elasticsearch.Client // 可以为 nil
	index    string
	fileRepo repositories.FileRepository
	gate     VisibilityGate
}

// NewService 创建搜索服务，es 为 nil 时只用数据库回退路径
func NewService(es *elasticsearch.Client, index string, fileRepo repositories.FileRepository, gate VisibilityGate) *Service {
	return &Service{
		es:       es,
		index:    index,
		fileRepo: fileRepo,
		gate:     gate,
	}
}

// IndexFile 写入（或覆盖）一条文件文档，文档 ID 就是文件 ID
func (s *Service) IndexFile(ctx context.Context, file *models.File) error {
	if s.es == nil {
		return nil
	}

	doc := fileDocument{
		FileID:           file.ID,
		FileName:         file.FileName,
		OriginalFileName: file.OriginalFileName,
		Path:             file.Path,
		Description:      file.Description,
		Tags:             file.Tags,
		MimeType:         file.MimeType,
		ApprovalStatus:   file.ApprovalStatus,
		IsCurrentVersion: file.IsCurrentVersion,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("search: marshal document: %w", err)
	}

	res, err := s.es.Index(
		s.index,
		bytes.NewReader(body),
		s.es.Index.WithDocumentID(strconv.FormatUint(file.ID, 10)),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("search: %w: %v", xerr.ErrSearchError, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search: index document %d: %w: %s", file.ID, xerr.ErrSearchError, res.Status())
	}
	return nil
}

// RemoveFile 从索引中删除文件文档，文档不存在不算错误
func (s *Service) RemoveFile(ctx context.Context, fileID uint64) error {
	if s.es == nil {
		return nil
	}

	res, err := s.es.Delete(
		s.index,
		strconv.FormatUint(fileID, 10),
		s.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("search: %w: %v", xerr.ErrSearchError, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("search: delete document %d: %w: %s", fileID, xerr.ErrSearchError, res.Status())
	}
	return nil
}

// Search 按关键词检索文件名/描述/标签，结果按调用者可见性过滤
// ES 查询失败时回退到数据库 LIKE
func (s *Service) Search(ctx context.Context, userID uint64, role string, keyword string) ([]models.SearchHit, error) {
	if keyword == "" {
		return nil, fmt.Errorf("search: empty keyword: %w", xerr.ErrInvalidParams)
	}

	if s.es != nil {
		hits, err := s.searchES(ctx, userID, role, keyword)
		if err == nil {
			return hits, nil
		}
		logger.Warn("search: Elasticsearch query failed, falling back to database",
			zap.String("keyword", keyword), zap.Error(err))
	}

	return s.searchDB(userID, role, keyword)
}

func (s *Service) searchES(ctx context.Context, userID uint64, role string, keyword string) ([]models.SearchHit, error) {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":  keyword,
						"fields": []string{"filename^2", "original_filename^2", "description", "tags"},
					},
				},
				"filter": []map[string]any{
					{"term": map[string]any{"is_current_version": true}},
				},
			},
		},
		"size": 100,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("search: marshal query: %w", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w: %v", xerr.ErrSearchError, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search: query: %w: %s", xerr.ErrSearchError, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64      `json:"_score"`
				Source fileDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	hits := make([]models.SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		// 索引文档里没有权限信息，命中后回源数据库做可见性判定
		file, err := s.fileRepo.FindByID(h.Source.FileID)
		if err != nil || !s.gate.FileVisible(userID, role, file) {
			continue
		}
		hits = append(hits, models.SearchHit{
			FileID:   h.Source.FileID,
			FileName: h.Source.FileName,
			Path:     h.Source.Path,
			Score:    h.Score,
		})
	}
	return hits, nil
}

func (s *Service) searchDB(userID uint64, role string, keyword string) ([]models.SearchHit, error) {
	files, err := s.fileRepo.SearchByName(keyword)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]models.SearchHit, 0, len(files))
	for i := range files {
		if !s.gate.FileVisible(userID, role, &files[i]) {
			continue
		}
		hits = append(hits, models.SearchHit{
			FileID:   files[i].ID,
			FileName: files[i].FileName,
			Path:     files[i].Path,
		})
	}
	return hits, nil
}
