package domain

// KeyPrefix namespaces every key mealrec writes to a shared key-value store.
const KeyPrefix = "mealrec:"
