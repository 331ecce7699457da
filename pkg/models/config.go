package models

type Config struct {
	Shop      Shop      `yaml:"shop"`
	Snowflake Snowflake `yaml:"snowflake"`
	Lake      Lake      `yaml:"lake"`
	Sync      Sync      `yaml:"sync"`
	Transform Transform `yaml:"transform"`
}

// Shop identifies the commerce storefront whose Admin API is the source
// of orders and customers. The access token itself lives in the secret
// store; TokenRef is the name it is filed under.
type Shop struct {
	Domain     string `yaml:"domain"`      // e.g. "bake-my-day.myshopify.com"
	APIVersion string `yaml:"api_version"` // e.g. "2024-01"
	TokenRef   string `yaml:"token_ref"`
}

type Snowflake struct {
	Account     string `yaml:"account"`
	Username    string `yaml:"username"`
	PasswordRef string `yaml:"password_ref"`
	Role        string `yaml:"role"`
	Warehouse   string `yaml:"warehouse"`
	Database    string `yaml:"database"`
	RawSchema   string `yaml:"raw_schema"`
	Schema      string `yaml:"schema"`
	Timeout     string `yaml:"timeout"` // e.g. "30s"
}

// Lake configures the object-storage landing zone for raw API payloads.
type Lake struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Region  string `yaml:"region"`
	// Static credentials are optional; the default AWS chain is used
	// when they are empty.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretKeyRef    string `yaml:"secret_key_ref"`
}

type Sync struct {
	Entities  []string `yaml:"entities"`   // defaults to orders, customers
	PageSize  int      `yaml:"page_size"`  // API page size, max 250
	Parallel  int      `yaml:"parallel"`   // concurrent entity syncs
	BatchSize int      `yaml:"batch_size"` // rows per MERGE batch
}

type Transform struct {
	ModelsDir string `yaml:"models_dir"`
}
