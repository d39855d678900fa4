package storage

import "github.com/jackc/pgx/v4"

type relatedRow struct {
	articleID int64
	userID    int64
	typ       string
	url       string
	content   string
}

type relatedBulk struct {
	rows []relatedRow
	idx  int
}

func (r relatedRow) toInterface() []interface{} {
	return []interface{}{r.articleID, r.userID, r.typ, r.url, r.content}
}

func copyFromRelated(rows []relatedRow) pgx.CopyFromSource {
	return &relatedBulk{
		rows: rows,
		idx:  -1,
	}
}

func (rb *relatedBulk) Next() bool {
	rb.idx++
	return rb.idx < len(rb.rows)
}

func (rb *relatedBulk) Values() ([]interface{}, error) {
	return rb.rows[rb.idx].toInterface(), nil
}

func (rb *relatedBulk) Err() error {
	return nil
}
