package cli

func (c *RootCommand) initFlags() {
	c.PersistentFlags().StringVarP(
		&c.Options.ConfigPath,
		"config",
		"c",
		"",
		"Path to the .env configuration file",
	)
	c.PersistentFlags().StringVarP(
		&c.Options.SchemaPath,
		"schema",
		"s",
		"",
		"Path to the schema file (default: <data dir>/schema.txt if present)",
	)
}
