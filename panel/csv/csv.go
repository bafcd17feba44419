/*
Package csv reads panels from CSV files and writes factor series to them,
using gota dataframes to parse and lay out the tabular data.
*/
package csv

import (
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pbanos/ptree/panel"
)

/*
ReadPanel takes an io.Reader for a CSV stream and a schema and returns the
panel parsed from it or an error.

The header of the CSV content must name the columns of the schema. Month and
asset columns are read as strings, the rest as numbers: any value that does
not parse as a number makes the panel fail validation.
*/
func ReadPanel(r io.Reader, schema panel.Schema) (*panel.Panel, error) {
	df := dataframe.ReadCSV(r,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.HasHeader(true),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("reading CSV panel: %v", df.Err)
	}
	chars, err := schema.CharacteristicColumns(df.Names())
	if err != nil {
		return nil, err
	}
	months := df.Col(schema.MonthColumn).Records()
	assets := df.Col(schema.AssetColumn).Records()
	returns := df.Col(schema.ReturnColumn).Float()
	weights := df.Col(schema.WeightColumn).Float()
	var lossWeights []float64
	if schema.LossWeightColumn != "" {
		lossWeights = df.Col(schema.LossWeightColumn).Float()
	}
	charValues := make([][]float64, len(chars))
	for j, c := range chars {
		charValues[j] = df.Col(c).Float()
	}
	b := panel.NewBuilder(chars)
	for i := 0; i < df.Nrow(); i++ {
		o := panel.Observation{
			Asset:           assets[i],
			Return:          returns[i],
			Weight:          weights[i],
			LossWeight:      1,
			Characteristics: make([]float64, len(chars)),
		}
		if lossWeights != nil {
			o.LossWeight = lossWeights[i]
		}
		for j := range chars {
			o.Characteristics[j] = charValues[j][i]
		}
		if err := b.Add(months[i], o); err != nil {
			return nil, fmt.Errorf("parsing line %d: %v", i+2, err)
		}
	}
	return b.Panel()
}

/*
ReadPanelFromFilePath takes a filepath string and a schema, opens the file
(os.Stdin if the filepath is "") and uses ReadPanel to return the panel in it.
*/
func ReadPanelFromFilePath(filepath string, schema panel.Schema) (*panel.Panel, error) {
	f := os.Stdin
	if filepath != "" {
		var err error
		f, err = os.Open(filepath)
		if err != nil {
			return nil, fmt.Errorf("reading panel: %v", err)
		}
		defer f.Close()
	}
	p, err := ReadPanel(f, schema)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV file %s: %w", filepath, err)
	}
	return p, nil
}

/*
WriteSeries takes an io.Writer, the month IDs, a name per series and the
series themselves and writes them as CSV with a "month" column followed by
one column per series. Every series must have one value per month.
*/
func WriteSeries(w io.Writer, months []string, names []string, values [][]float64) error {
	if len(names) != len(values) {
		return fmt.Errorf("writing series: %d names for %d series", len(names), len(values))
	}
	columns := []series.Series{series.New(months, series.String, "month")}
	for i, v := range values {
		if len(v) != len(months) {
			return fmt.Errorf("writing series %s: %d values for %d months", names[i], len(v), len(months))
		}
		columns = append(columns, series.New(v, series.Float, names[i]))
	}
	df := dataframe.New(columns...)
	if df.Err != nil {
		return fmt.Errorf("writing series: %v", df.Err)
	}
	return df.WriteCSV(w)
}

// WriteSeriesToFilePath is WriteSeries onto a file at the given path.
func WriteSeriesToFilePath(filepath string, months []string, names []string, values [][]float64) error {
	f, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("writing series to %s: %v", filepath, err)
	}
	err = WriteSeries(f, months, names, values)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
