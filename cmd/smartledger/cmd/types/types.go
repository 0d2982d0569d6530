package types

type contextKey string

// ClientAppKey — ключ контекста, под которым команды находят
// собранное приложение
const ClientAppKey contextKey = "client_app"
