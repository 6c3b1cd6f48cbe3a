// Package mealrec embeds the recipe recommender in a Go program.
//
// A Client holds one corpus in memory. Ingest replaces it as a whole,
// Recommend ranks it against a free-text query by cosine similarity.
//
//	client, _ := mealrec.New(ctx) // offline hashing embeddings
//	_ = client.Ingest(ctx, []mealrec.Recipe{
//	    {Name: "Chicken Curry", Ingredients: []string{"chicken", "curry paste"}, Cuisine: "Indian"},
//	    {Name: "Miso Soup", Ingredients: []string{"miso", "tofu"}, Cuisine: "Japanese"},
//	})
//	recs, _ := client.Recommend(ctx, "spicy chicken dinner", 3)
//
// Plug any embedding provider in with WithEmbedder. Vectors can be cached in
// Redis or a local SQLite file with WithRedisCache / WithSQLiteCache.
package mealrec
