// Package config loads claimdesk.yaml.
//
// Sections:
//   - server    ports, auth (apikey|none), dashboard interval, batch parallelism
//   - llm       provider (gemini|none), model, API key env var, response cache
//   - retrieval policy retriever (keyword|index|embedding) and top_k
//   - rules     thresholds of the deterministic claim rules
//   - store     retention of processed claims
//   - alerts    CEL alert rules and webhook targets
//   - log       zap level and encoding
//   - intake    inbox directory watched for claim files
//
// Secrets are never stored in the file: the config names environment
// variables (api_key_env, key_env, url_env, redis_password_env) and the
// accessor methods resolve them at call time.
//
// Load(path) applies Default() before unmarshalling, then validates.
// Watch(ctx, path, log, onChange) reloads the file on change and keeps the
// previous config when the new one does not validate.
package config
