package dataset

// Iris returns the schema of Fisher's iris dataset: four flower
// measurements and three species.
func Iris() Schema {
	return Schema{
		Name: "iris",
		Features: []string{
			"sepal_length",
			"sepal_width",
			"petal_length",
			"petal_width",
		},
		Classes: []string{"setosa", "versicolor", "virginica"},
	}
}
