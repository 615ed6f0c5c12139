package utils

//run redis
//docker run -p 6379:6379 -d redis

//networked vector stores
//docker run -p 6333:6333 -p 6334:6334 -v vectorDBData:/qdrant/storage qdrant/qdrant
//docker run -p 5432:5432 -e POSTGRES_PASSWORD=docqa pgvector/pgvector:pg16

//swagger init
//swag init -g cmd/api/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/api/docs
