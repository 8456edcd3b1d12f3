// Package projects は公開サイトに掲載するプロジェクト情報を管理します。
package projects

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound は指定した ID のプロジェクトが存在しないことを表します。
	ErrNotFound = errors.New("project not found")
	// ErrInvalid は更新内容が不正であることを表します。
	ErrInvalid = errors.New("invalid project")
)

// Project はプロジェクト 1 件分の情報です。
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Location    string    `json:"location,omitempty"`
	Year        int       `json:"year,omitempty"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Images      []string  `json:"images,omitempty"`
	Featured    bool      `json:"featured"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Patch は部分更新の内容です。nil のフィールドは変更しません。
type Patch struct {
	Title       *string   `json:"title"`
	Slug        *string   `json:"slug"`
	Summary     *string   `json:"summary"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Location    *string   `json:"location"`
	Year        *int      `json:"year"`
	CoverImage  *string   `json:"coverImage"`
	Images      *[]string `json:"images"`
	Featured    *bool     `json:"featured"`
}

// Apply は p の内容を検証してから project に反映します。
// 検証に失敗した場合、project は変更されません。
func (p Patch) Apply(project *Project) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalid)
	}
	if p.Slug != nil && !validSlug(*p.Slug) {
		return fmt.Errorf("%w: slug must be lowercase letters, digits and hyphens", ErrInvalid)
	}
	if p.Year != nil && (*p.Year < 0 || *p.Year > 9999) {
		return fmt.Errorf("%w: year out of range", ErrInvalid)
	}
	if p.Images != nil {
		for _, img := range *p.Images {
			if strings.TrimSpace(img) == "" {
				return fmt.Errorf("%w: image reference must not be empty", ErrInvalid)
			}
		}
	}

	if p.Title != nil {
		project.Title = strings.TrimSpace(*p.Title)
	}
	if p.Slug != nil {
		project.Slug = *p.Slug
	}
	if p.Summary != nil {
		project.Summary = *p.Summary
	}
	if p.Description != nil {
		project.Description = *p.Description
	}
	if p.Category != nil {
		project.Category = *p.Category
	}
	if p.Location != nil {
		project.Location = *p.Location
	}
	if p.Year != nil {
		project.Year = *p.Year
	}
	if p.CoverImage != nil {
		project.CoverImage = *p.CoverImage
	}
	if p.Images != nil {
		project.Images = append([]string(nil), (*p.Images)...)
	}
	if p.Featured != nil {
		project.Featured = *p.Featured
	}
	return nil
}

func validSlug(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}
