package main

// defaultConfigTemplate seeds a starter httpdiff.toml with three
// environments and a handful of representative routes, mirroring the field
// names config.Config actually decodes (camelCase koanf tags, not the
// original tool's snake_case).
const defaultConfigTemplate = `# httpdiff configuration
# Defines environments, routes, and global defaults for a comparison run.

[environments.test]
baseUrl = "https://api-test.example.com"
headers."X-Scope" = "test"

[environments.staging]
baseUrl = "https://api-staging.example.com"
headers."X-Scope" = "staging"

[environments.prod]
baseUrl = "https://api.example.com"
headers."X-Scope" = "prod"
isBase = true

[global]
timeoutSeconds = 30
followRedirects = true
concurrency = 10
ignoredHeaders = ["Date", "Server", "X-Request-Id", "Set-Cookie", "ETag"]

[global.headers]
"User-Agent" = "httpdiff/1.0"
Accept = "application/json"

[global.params]
version = "v1"

[[routes]]
name = "login"
method = "POST"
path = "/api/login"
body = '{"username": "{username}", "password": "{password}"}'

[routes.headers]
"Content-Type" = "application/json"

[[routes.extract]]
name = "token"
kind = "jsonpath"
source = "$.token"

[[routes]]
name = "profile"
method = "GET"
path = "/api/users/{userId}"
dependsOn = ["login"]

[routes.headers]
Authorization = "Bearer {token}"

[[routes]]
name = "health-check"
method = "GET"
path = "/health"
`

// defaultUsersTemplate seeds a starter users.csv with columns the sample
// config's placeholders reference.
const defaultUsersTemplate = `userId,username,password
745741037,alice,hunter2
85264518,bob,hunter3
`
