package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/pbanos/ptree"
	"github.com/pbanos/ptree/panel"
	panelcsv "github.com/pbanos/ptree/panel/csv"
	"github.com/pbanos/ptree/panel/sqlpanel"
	"github.com/pbanos/ptree/store"
	"github.com/pbanos/ptree/store/mongostore"
	"github.com/pbanos/ptree/store/redisstore"
)

type panelInput struct {
	dataInput   string
	schemaInput string
	table       string
	start, end  string
}

func (pi *panelInput) addFlags(cmd *cobra.Command, use string) {
	cmd.Flags().StringVarP(&(pi.dataInput), "input", "i", "", "path to an input CSV (.csv) or SQLite3 (.db) file, or a PostgreSQL DB connection URL with the panel "+use+" (defaults to STDIN, interpreted as CSV)")
	cmd.Flags().StringVar(&(pi.schemaInput), "schema", "", "path to a YML file naming the columns of the panel (defaults to date, permno, xret, lag_me and rank_* columns)")
	cmd.Flags().StringVar(&(pi.table), "table", sqlpanel.DefaultTable, "table holding the panel on SQL inputs")
	cmd.Flags().StringVar(&(pi.start), "start", "", "first month of the panel to use (defaults to the first one available)")
	cmd.Flags().StringVar(&(pi.end), "end", "", "last month of the panel to use (defaults to the last one available)")
}

func (pi *panelInput) schema() (panel.Schema, error) {
	schema := panel.DefaultSchema()
	if pi.schemaInput == "" {
		return schema, nil
	}
	data, err := os.ReadFile(pi.schemaInput)
	if err != nil {
		return schema, fmt.Errorf("reading schema: %v", err)
	}
	if err := yaml.UnmarshalStrict(data, &schema); err != nil {
		return schema, fmt.Errorf("parsing schema %s: %v", pi.schemaInput, err)
	}
	return schema, nil
}

func (pi *panelInput) panel(ctx context.Context) (*panel.Panel, error) {
	log := zerolog.Ctx(ctx)
	schema, err := pi.schema()
	if err != nil {
		return nil, err
	}
	var p *panel.Panel
	if sqlpanel.Driver(pi.dataInput) == "postgres" || strings.HasSuffix(pi.dataInput, ".db") {
		log.Debug().Str("driver", sqlpanel.Driver(pi.dataInput)).Str("table", pi.table).Msg("Reading panel from database")
		db, err := sqlpanel.Open(ctx, pi.dataInput)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		p, err = sqlpanel.ReadPanel(ctx, db, pi.table, schema)
		if err != nil {
			return nil, err
		}
	} else {
		if pi.dataInput == "" {
			log.Debug().Msg("Reading panel from STDIN")
		}
		p, err = panelcsv.ReadPanelFromFilePath(pi.dataInput, schema)
		if err != nil {
			return nil, err
		}
	}
	if pi.start != "" || pi.end != "" {
		p = p.Window(pi.start, pi.end)
		if p.Len() == 0 {
			return nil, fmt.Errorf("no months between %q and %q", pi.start, pi.end)
		}
	}
	log.Info().
		Int("months", p.Len()).
		Int("observations", p.Count()).
		Int("characteristics", len(p.Characteristics)).
		Int("minCrossSection", p.MinCrossSection()).
		Msg("Panel read")
	return p, nil
}

/*
openStore takes a context and a store URL and returns the model store for
its scheme: redis:// or mongodb://.
*/
func openStore(ctx context.Context, rawurl string) (store.ModelStore, error) {
	switch {
	case strings.HasPrefix(rawurl, "redis://"):
		return redisstore.Open(ctx, rawurl)
	case strings.HasPrefix(rawurl, "mongodb://"):
		return mongostore.Open(ctx, rawurl)
	}
	return nil, fmt.Errorf("unsupported model store URL %q", rawurl)
}

/*
loadModel takes a context, a model reference and a store URL and returns the
model. Without store URL the reference is a file path, otherwise it is the ID
of the model on the store.
*/
func loadModel(ctx context.Context, ref, storeURL string) (*ptree.Model, error) {
	m, err := readModel(ctx, ref, storeURL)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", ref, err)
	}
	return m, nil
}

func readModel(ctx context.Context, ref, storeURL string) (*ptree.Model, error) {
	if storeURL == "" {
		return store.ReadFile(ref)
	}
	s, err := openStore(ctx, storeURL)
	if err != nil {
		return nil, err
	}
	defer s.Close(ctx)
	m, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("model %s not found", ref)
	}
	return m, nil
}

/*
saveModel takes a context, a model, an output path and a store URL and saves
the model on the store if the URL is set, on the output file if the path is
set, or writes it as JSON on w otherwise.
*/
func saveModel(ctx context.Context, m *ptree.Model, output, storeURL string, w io.Writer) error {
	if storeURL != "" {
		s, err := openStore(ctx, storeURL)
		if err != nil {
			return err
		}
		defer s.Close(ctx)
		if err := s.Create(ctx, m); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Info().Str("id", m.ID).Msg("Model stored")
		fmt.Fprintln(w, m.ID)
		return nil
	}
	if output != "" {
		return store.WriteFile(output, m)
	}
	data, err := store.JSON.Encode(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeFactors(w io.Writer, output string, months []string, factors [][]float64) error {
	names := make([]string, len(factors))
	for i := range factors {
		names[i] = fmt.Sprintf("factor%d", i+1)
	}
	if output == "" {
		return panelcsv.WriteSeries(w, months, names, factors)
	}
	return panelcsv.WriteSeriesToFilePath(output, months, names, factors)
}
