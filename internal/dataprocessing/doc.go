// Package dataprocessing turns a loaded table and a set of user choices into
// a dashboard view.
//
// # Architecture
//
// The package is organized into four parts:
//
// 1. Parser: reads CSV or XLSX uploads into a typed table
// 2. Profiles: describe which filters, KPIs and sections a dataset gets
// 3. Filters: narrow a table by inclusive ranges and category subsets
// 4. Aggregates: top-N rankings, trends, rolling means and KPIs
//
// # Usage
//
//	p := dataprocessing.NewPipeline(dataprocessing.DefaultConfig(), logger)
//	t, err := dataprocessing.Load(file, dataprocessing.DetectFormat(name))
//	if err != nil {
//	    return err
//	}
//	prof, err := p.Resolve(t, "")
//	if err != nil {
//	    return err
//	}
//	res, err := p.Evaluate(ctx, p.Prepare(t, prof), prof, criteria)
//
// # Data Flow
//
//	Upload → Load → Table → Narrow → Narrowed Table → Sections → View
//
// Every evaluation starts from the full table. Nothing computed for one
// view is reused by the next, so results depend only on the table and the
// criteria.
//
// # Error Handling
//
// Parse failures are *apierrors.AppError values of type PARSING that name
// the offending row. Bounds that do not parse for their column are
// VALIDATION errors. Columns a filter or section needs but the table lacks
// are reported in the view rather than failing it, and a selection naming a
// value absent from the narrowed rows falls back to the first option.
package dataprocessing
