package models

import (
	"encoding/base64"
	"errors"
	"strconv"

	"github.com/mmdatafocus/leads_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage *bool  `json:"hasNextPage,omitempty"`
}

type Identifier interface {
	GetId() int
}

type Edge[N any] struct {
	Node   *N     `json:"node"`
	Cursor string `json:"cursor"`
}

type Connection[N any] struct {
	Edges    []Edge[N] `json:"edges"`
	PageInfo *PageInfo `json:"pageInfo"`
}

func DecodeCursor(cursor *string) (string, error) {
	decodedCursor := ""
	if cursor != nil {
		b, err := base64.StdEncoding.DecodeString(*cursor)
		if err != nil {
			return decodedCursor, err
		}
		decodedCursor = string(b)
	}
	return decodedCursor, nil
}

func EncodeCursor(cursor string) string {
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

func clampPageSize(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// FetchPageById pages newest first on the primary key; the cursor is the base64 id of the last edge.
func FetchPageById[T Identifier](dbCtx *gorm.DB, limit int, after *string) (*Connection[T], error) {
	limit = clampPageSize(limit)
	nodes := make([]*T, 0)

	decodedCursor, err := DecodeCursor(after)
	if err != nil {
		return nil, errors.New("invalid cursor")
	}
	if decodedCursor != "" {
		lastId, err := strconv.Atoi(decodedCursor)
		if err != nil {
			return nil, errors.New("invalid cursor")
		}
		dbCtx = dbCtx.Where("id < ?", lastId)
	}

	if err := dbCtx.Order("id DESC").Limit(limit + 1).Find(&nodes).Error; err != nil {
		return nil, err
	}

	/*
		constructing edges & page info
	*/
	count := 0
	hasNextPage := false
	edges := make([]Edge[T], 0, len(nodes))
	for _, node := range nodes {
		if count == limit {
			hasNextPage = true
		}
		if count < limit {
			edges = append(edges, Edge[T]{
				Node:   node,
				Cursor: EncodeCursor(strconv.Itoa((*node).GetId())),
			})
			count++
		}
	}

	pageInfo := PageInfo{
		StartCursor: "",
		EndCursor:   "",
		HasNextPage: utils.NewFalse(),
	}
	if count > 0 {
		pageInfo = PageInfo{
			StartCursor: edges[0].Cursor,
			EndCursor:   edges[count-1].Cursor,
			HasNextPage: &hasNextPage,
		}
	}

	return &Connection[T]{Edges: edges, PageInfo: &pageInfo}, nil
}
