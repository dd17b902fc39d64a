package recordstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/guregu/dynamo/v2"
)

// rowItem is the DynamoDB representation of one dataset row. Row 0 holds
// the header; data rows start at 1.
type rowItem struct {
	Dataset string `dynamo:"dataset,hash"`
	RowNum  int    `dynamo:"row_num,range"`

	Headers []string          `dynamo:"headers,omitempty"`
	Cells   map[string]string `dynamo:"cells,omitempty"`
}

// DdbDataset stores a dataset as one DynamoDB item per row, keyed by
// dataset name and row number.
type DdbDataset struct {
	table dynamo.Table
	name  string
}

func NewDdbDataset(region, tableName, datasetName string) (*DdbDataset, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	db := dynamo.New(cfg)
	return &DdbDataset{
		table: db.Table(tableName),
		name:  datasetName,
	}, nil
}

func (d *DdbDataset) EnsureHeaders(ctx context.Context, headers []string) error {
	item := rowItem{
		Dataset: d.name,
		RowNum:  0,
		Headers: headers,
	}
	err := d.table.Put(item).If("attribute_not_exists(dataset)").Run(ctx)
	if err != nil {
		if dynamo.IsCondCheckFailed(err) {
			return nil
		}
		return fmt.Errorf("failed to create dataset header: %w", err)
	}
	return nil
}

func (d *DdbDataset) Rows(ctx context.Context) ([]Row, error) {
	var items []rowItem
	err := d.table.Get("dataset", d.name).All(ctx, &items)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", d.name, err)
	}

	rows := make([]Row, 0, len(items))
	for _, item := range items {
		if item.RowNum == 0 {
			continue
		}
		rows = append(rows, Row{Num: item.RowNum, Cells: item.Cells})
	}
	return rows, nil
}

func (d *DdbDataset) Update(ctx context.Context, num int, cells map[string]string) error {
	update := d.table.Update("dataset", d.name).Range("row_num", num)
	for column, value := range cells {
		update = update.Set(fmt.Sprintf("cells.'%s'", column), value)
	}
	if err := update.Run(ctx); err != nil {
		return fmt.Errorf("failed to update row %d of %s: %w", num, d.name, err)
	}
	return nil
}

func (d *DdbDataset) Append(ctx context.Context, cells map[string]string) (int, error) {
	var last rowItem
	next := 1
	err := d.table.Get("dataset", d.name).
		Order(dynamo.Descending).
		Limit(1).
		One(ctx, &last)
	if err == nil {
		next = last.RowNum + 1
	} else if !errors.Is(err, dynamo.ErrNotFound) {
		return 0, fmt.Errorf("failed to find last row of %s: %w", d.name, err)
	}

	item := rowItem{
		Dataset: d.name,
		RowNum:  next,
		Cells:   cells,
	}
	err = d.table.Put(item).If("attribute_not_exists(dataset)").Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to append row to %s: %w", d.name, err)
	}
	return next, nil
}
