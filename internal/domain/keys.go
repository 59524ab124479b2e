package domain

// KeyPrefix namespaces every key the engine touches in the store.
const KeyPrefix = "plundrr:"
