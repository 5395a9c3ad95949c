/*
Package dsl builds tool compositions in Go instead of JSON.

It is handy for seeding catalogs, for tests and for generators that assemble
tools programmatically:

	b := dsl.New("Lunch vote")

	b.Add("p1", domain.KindPoll).
		Config("question", "Where do we eat?").
		Config("options", []any{"Pizza", "Tacos"}).
		To("results", "c1", "results")

	b.Add("c1", domain.KindChartDisplay)

	catalog, err := b.Catalog("lunch-vote")

Elements keep the order they were added in. Build does not validate; run
the result through the validator when it matters.
*/
package dsl
