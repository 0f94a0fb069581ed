package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの定期削除ワーカーを起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandSeedUser はパスワード付きのユーザーを作成することを示す。
	CommandSeedUser Command = "seed-user"

	// CommandLogin はクライアントとしてログインすることを示す。
	CommandLogin Command = "login"
	// CommandLogout はクライアントのセッションを破棄することを示す。
	CommandLogout Command = "logout"
	// CommandWhoami は保存済みセッションを復元して表示することを示す。
	CommandWhoami Command = "whoami"
	// CommandTheme はテーマ設定を表示・変更することを示す。
	CommandTheme Command = "theme"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck, CommandSeedUser,
		CommandLogin, CommandLogout, CommandWhoami, CommandTheme:
		return cmd
	default:
		return CommandServe
	}
}

// IsClient はサーバーではなくCLIクライアントとして動作するコマンドかどうかを返す。
// クライアントコマンドはデータベースを必要としない。
func (c Command) IsClient() bool {
	switch c {
	case CommandLogin, CommandLogout, CommandWhoami, CommandTheme:
		return true
	default:
		return false
	}
}
